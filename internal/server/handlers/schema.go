package handlers

import (
	"context"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/maruel/flatdb/internal/jsondb"
	"github.com/maruel/flatdb/internal/models"
)

// CommandRequests maps each collection command to its request body type.
var CommandRequests = map[string]any{
	"get":           models.GetRequest{},
	"getBulk":       models.KeysRequest{},
	"searchKeys":    models.KeysRequest{},
	"search":        models.SearchRequest{},
	"select":        models.SelectRequest{},
	"values":        models.ValuesRequest{},
	"random":        models.RandomRequest{},
	"add":           models.AddRequest{},
	"addBulk":       models.AddBulkRequest{},
	"set":           models.SetRequest{},
	"setBulk":       models.SetBulkRequest{},
	"remove":        models.GetRequest{},
	"removeBulk":    models.KeysRequest{},
	"editField":     models.EditFieldRequest{},
	"editFieldBulk": models.EditFieldBulkRequest{},
	"write_raw":     models.WriteRawRequest{},
}

// SchemaHandler serves the JSON Schema of every command request.
type SchemaHandler struct {
	once   sync.Once
	schema *models.SchemaResponse
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

// Schema returns the request schemas, computed once.
func (h *SchemaHandler) Schema(ctx context.Context, req *models.SchemaRequest) (*models.SchemaResponse, error) {
	h.once.Do(func() {
		r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, Mapper: mapType}
		cmds := make(map[string]*jsonschema.Schema, len(CommandRequests))
		for name, v := range CommandRequests {
			cmds[name] = r.Reflect(v)
		}
		h.schema = &models.SchemaResponse{Commands: cmds}
	})
	return h.schema, nil
}

// mapType describes the engine types whose JSON form differs from their Go
// layout.
func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeFor[jsondb.Value]():
		return &jsonschema.Schema{Description: "Any JSON value"}
	case reflect.TypeFor[jsondb.Key]():
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{{Type: "string"}, {Type: "integer"}},
		}
	case reflect.TypeFor[jsondb.Criteria]():
		s := &jsonschema.Schema{Type: "string"}
		for _, c := range jsondb.AllCriteria() {
			s.Enum = append(s.Enum, string(c))
		}
		return s
	case reflect.TypeFor[jsondb.Operation]():
		s := &jsonschema.Schema{Type: "string"}
		for _, o := range jsondb.AllOperations() {
			s.Enum = append(s.Enum, string(o))
		}
		return s
	default:
		return nil
	}
}
