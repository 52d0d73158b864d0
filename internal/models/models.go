// Package models defines the request and response types of the HTTP API.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/maruel/flatdb/internal/errors"
	"github.com/maruel/flatdb/internal/jsondb"
)

// --- Server ---

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// Validate implements server.Validatable.
func (r *HealthRequest) Validate() error { return nil }

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Collections   int      `json:"collections"`
	Failing       []string `json:"failing,omitempty"`
}

// SchemaRequest requests the JSON Schema of the command requests.
type SchemaRequest struct{}

// Validate implements server.Validatable.
func (r *SchemaRequest) Validate() error { return nil }

// SchemaResponse maps each command name to the schema of its request body.
type SchemaResponse struct {
	Commands map[string]*jsonschema.Schema `json:"commands"`
}

// ListCollectionsRequest lists the served collections.
type ListCollectionsRequest struct{}

// Validate implements server.Validatable.
func (r *ListCollectionsRequest) Validate() error { return nil }

// ListCollectionsResponse holds the collection names.
type ListCollectionsResponse struct {
	Collections []string `json:"collections"`
}

// --- Auth ---

// TokenRequest exchanges the admin password for a write token.
type TokenRequest struct {
	Password string `json:"password" jsonschema:"description=Admin password"`
}

// Validate implements server.Validatable.
func (r *TokenRequest) Validate() error {
	if r.Password == "" {
		return errors.MissingField("password")
	}
	return nil
}

// TokenResponse holds a signed bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// --- Collection commands ---

// CollectionRequest targets a collection and carries no body.
type CollectionRequest struct {
	Collection string `path:"collection" json:"-"`
}

// Validate implements server.Validatable.
func (r *CollectionRequest) Validate() error {
	if r.Collection == "" {
		return errors.MissingField("collection")
	}
	return nil
}

// GetRequest fetches one document.
type GetRequest struct {
	CollectionRequest
	Key jsondb.Key `json:"key" jsonschema:"description=Document key"`
}

// Validate implements server.Validatable.
func (r *GetRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	return validateKeys(r.Key)
}

// KeysRequest names several documents. It backs getBulk, searchKeys and
// removeBulk.
type KeysRequest struct {
	CollectionRequest
	Keys []jsondb.Key `json:"keys" jsonschema:"description=Document keys"`
}

// Validate implements server.Validatable.
func (r *KeysRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if r.Keys == nil {
		return errors.MissingField("keys")
	}
	return validateKeys(r.Keys...)
}

// RandomOption enables random ordering of search results. It decodes from
// a boolean or from an integer used as the seed.
type RandomOption struct {
	Enabled bool
	Seed    *int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *RandomOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*o = RandomOption{}
	case bytes.Equal(data, []byte("true")):
		*o = RandomOption{Enabled: true}
	default:
		var seed int64
		if err := json.Unmarshal(data, &seed); err != nil {
			return fmt.Errorf("random must be a boolean or an integer seed: %w", err)
		}
		*o = RandomOption{Enabled: true, Seed: &seed}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o RandomOption) MarshalJSON() ([]byte, error) {
	if o.Seed != nil {
		return json.Marshal(*o.Seed)
	}
	return json.Marshal(o.Enabled)
}

// JSONSchema implements jsonschema.JSONSchemer.
func (RandomOption) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "boolean"},
			{Type: "integer"},
		},
		Description: "true to shuffle the matches, or an integer seed for a reproducible order",
	}
}

// SearchRequest filters documents.
type SearchRequest struct {
	CollectionRequest
	Conditions []jsondb.Condition `json:"conditions" jsonschema:"description=Conditions that must all hold"`
	Random     RandomOption       `json:"random,omitzero"`
}

// Validate implements server.Validatable.
func (r *SearchRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if err := jsondb.ValidateConditions(r.Conditions); err != nil {
		return errors.BadRequest(err.Error())
	}
	return nil
}

// SelectRequest projects documents to a set of fields.
type SelectRequest struct {
	CollectionRequest
	Fields []string `json:"fields" jsonschema:"description=Top-level fields to keep"`
}

// Validate implements server.Validatable.
func (r *SelectRequest) Validate() error {
	return r.CollectionRequest.Validate()
}

// ValuesRequest lists the distinct values of a field.
type ValuesRequest struct {
	CollectionRequest
	Field   string `json:"field" jsonschema:"description=Dotted field path"`
	Flatten bool   `json:"flatten,omitempty" jsonschema:"description=Expand array values into their elements"`
}

// Validate implements server.Validatable.
func (r *ValuesRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if r.Field == "" {
		return errors.MissingField("field")
	}
	return nil
}

// RandomRequest samples documents.
type RandomRequest struct {
	CollectionRequest
	Max    *int   `json:"max,omitempty" jsonschema:"description=Maximum number of documents; -1 for all"`
	Seed   *int64 `json:"seed,omitempty" jsonschema:"description=Seed for a reproducible sample"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=Number of draws to skip"`
}

// Validate implements server.Validatable.
func (r *RandomRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if r.Max != nil && *r.Max < -1 {
		return errors.BadRequest("max must be -1 or more")
	}
	if r.Offset < 0 {
		return errors.BadRequest("offset must be positive")
	}
	return nil
}

// Limit returns Max, defaulting to -1.
func (r *RandomRequest) Limit() int {
	if r.Max == nil {
		return -1
	}
	return *r.Max
}

// AddRequest stores a document under a generated key.
type AddRequest struct {
	CollectionRequest
	Value jsondb.Value `json:"value" jsonschema:"description=Document to store"`
}

// Validate implements server.Validatable.
func (r *AddRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if !r.Value.IsDefined() {
		return errors.MissingField("value")
	}
	return nil
}

// AddBulkRequest stores documents under generated keys.
type AddBulkRequest struct {
	CollectionRequest
	Values []jsondb.Value `json:"values" jsonschema:"description=Documents to store"`
}

// Validate implements server.Validatable.
func (r *AddBulkRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if r.Values == nil {
		return errors.MissingField("values")
	}
	return nil
}

// SetRequest stores a document at an explicit key.
type SetRequest struct {
	CollectionRequest
	Key   jsondb.Key   `json:"key" jsonschema:"description=Document key"`
	Value jsondb.Value `json:"value" jsonschema:"description=Document to store"`
}

// Validate implements server.Validatable.
func (r *SetRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if err := validateKeys(r.Key); err != nil {
		return err
	}
	if !r.Value.IsDefined() {
		return errors.MissingField("value")
	}
	return nil
}

// SetBulkRequest stores documents at explicit keys.
type SetBulkRequest struct {
	CollectionRequest
	Keys   []jsondb.Key   `json:"keys" jsonschema:"description=Document keys"`
	Values []jsondb.Value `json:"values" jsonschema:"description=Documents to store, one per key"`
}

// Validate implements server.Validatable.
func (r *SetBulkRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if len(r.Keys) != len(r.Values) {
		return errors.BadRequest(fmt.Sprintf("got %d keys and %d values", len(r.Keys), len(r.Values)))
	}
	return validateKeys(r.Keys...)
}

// EditFieldRequest applies one field edit.
type EditFieldRequest struct {
	CollectionRequest
	jsondb.EditOperation
}

// Validate implements server.Validatable. Malformed edits are reported as
// unsuccessful rather than rejected.
func (r *EditFieldRequest) Validate() error {
	return r.CollectionRequest.Validate()
}

// EditFieldBulkRequest applies several field edits in one write.
type EditFieldBulkRequest struct {
	CollectionRequest
	Edits []jsondb.EditOperation `json:"edits" jsonschema:"description=Edits applied in order"`
}

// Validate implements server.Validatable.
func (r *EditFieldBulkRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if r.Edits == nil {
		return errors.MissingField("edits")
	}
	return nil
}

// WriteRawRequest replaces a whole collection.
type WriteRawRequest struct {
	CollectionRequest
	Content jsondb.Value `json:"content" jsonschema:"description=Object mapping keys to documents"`
}

// Validate implements server.Validatable.
func (r *WriteRawRequest) Validate() error {
	if err := r.CollectionRequest.Validate(); err != nil {
		return err
	}
	if r.Content.Kind() != jsondb.KindObject {
		return errors.BadRequest("content must be an object")
	}
	return nil
}

func validateKeys(keys ...jsondb.Key) error {
	for i, k := range keys {
		if k == "" {
			return errors.BadRequest("key must not be empty").WithDetail("index", i)
		}
	}
	return nil
}

// --- Responses ---

// DocumentResponse is one document with its key.
type DocumentResponse struct {
	Key   string       `json:"key"`
	Value jsondb.Value `json:"value"`
}

// EntriesResponse lists documents with their keys, in result order.
type EntriesResponse struct {
	Entries []jsondb.Entry `json:"entries"`
}

// KeyResponse returns a generated key.
type KeyResponse struct {
	Key string `json:"key"`
}

// KeysResponse returns generated keys in request order.
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// ValuesResponse lists distinct field values.
type ValuesResponse struct {
	Values []jsondb.Value `json:"values"`
}

// EditResponse reports whether an edit applied.
type EditResponse struct {
	Success bool `json:"success"`
}

// EditBulkResponse reports each edit, in request order.
type EditBulkResponse struct {
	Results []bool `json:"results"`
}

// SHA1Response holds the hex SHA-1 of the collection file.
type SHA1Response struct {
	SHA1 string `json:"sha1"`
}

// OKResponse acknowledges a write.
type OKResponse struct {
	OK bool `json:"ok"`
}
