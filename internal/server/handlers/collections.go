package handlers

import (
	"context"
	stderrors "errors"

	"github.com/maruel/flatdb/internal/errors"
	"github.com/maruel/flatdb/internal/jsondb"
	"github.com/maruel/flatdb/internal/models"
	"github.com/maruel/flatdb/internal/storage"
)

// CollectionHandler runs collection commands.
type CollectionHandler struct {
	registry *storage.Registry
}

// NewCollectionHandler creates a new collection handler.
func NewCollectionHandler(registry *storage.Registry) *CollectionHandler {
	return &CollectionHandler{registry: registry}
}

func (h *CollectionHandler) collection(name string) (*jsondb.Collection, error) {
	c, err := h.registry.Get(name)
	if stderrors.Is(err, storage.ErrUnknownCollection) {
		return nil, errors.CollectionNotFound(name)
	}
	return c, err
}

// ListCollections returns the configured collection names.
func (h *CollectionHandler) ListCollections(ctx context.Context, req *models.ListCollectionsRequest) (*models.ListCollectionsResponse, error) {
	return &models.ListCollectionsResponse{Collections: h.registry.Names()}, nil
}

// --- Reads ---

// Get returns one document.
func (h *CollectionHandler) Get(ctx context.Context, req *models.GetRequest) (*models.DocumentResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	v, err := c.Get(ctx, string(req.Key))
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.DocumentResponse{Key: string(req.Key), Value: v}, nil
}

// GetBulk returns the documents present among the requested keys.
func (h *CollectionHandler) GetBulk(ctx context.Context, req *models.KeysRequest) (*models.EntriesResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	entries, err := c.GetBulk(ctx, jsondb.Strings(req.Keys))
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EntriesResponse{Entries: entries}, nil
}

// SearchKeys is GetBulk under its search name.
func (h *CollectionHandler) SearchKeys(ctx context.Context, req *models.KeysRequest) (*models.EntriesResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	entries, err := c.SearchKeys(ctx, jsondb.Strings(req.Keys))
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EntriesResponse{Entries: entries}, nil
}

// Search returns the documents matching every condition.
func (h *CollectionHandler) Search(ctx context.Context, req *models.SearchRequest) (*models.EntriesResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	random := jsondb.Randomize{Enabled: req.Random.Enabled, Seed: req.Random.Seed}
	entries, err := c.Search(ctx, req.Conditions, random)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EntriesResponse{Entries: entries}, nil
}

// Select returns every document reduced to the requested fields.
func (h *CollectionHandler) Select(ctx context.Context, req *models.SelectRequest) (*models.EntriesResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	entries, err := c.Select(ctx, req.Fields)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EntriesResponse{Entries: entries}, nil
}

// Values returns the distinct values of a field.
func (h *CollectionHandler) Values(ctx context.Context, req *models.ValuesRequest) (*models.ValuesResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	values, err := c.Values(ctx, req.Field, req.Flatten)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.ValuesResponse{Values: values}, nil
}

// Random returns a random sample of documents.
func (h *CollectionHandler) Random(ctx context.Context, req *models.RandomRequest) (*models.EntriesResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	entries, err := c.Random(ctx, req.Limit(), req.Seed, req.Offset)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EntriesResponse{Entries: entries}, nil
}

// ReadRaw returns the whole collection object.
func (h *CollectionHandler) ReadRaw(ctx context.Context, req *models.CollectionRequest) (*jsondb.Document, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	d, err := c.ReadRaw(ctx)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return d, nil
}

// SHA1 returns the digest of the collection file.
func (h *CollectionHandler) SHA1(ctx context.Context, req *models.CollectionRequest) (*models.SHA1Response, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	sum, err := c.SHA1(ctx)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.SHA1Response{SHA1: sum}, nil
}

// --- Writes ---

// Add stores a document under a generated key.
func (h *CollectionHandler) Add(ctx context.Context, req *models.AddRequest) (*models.KeyResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	key, err := c.Add(ctx, req.Value)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.KeyResponse{Key: key}, nil
}

// AddBulk stores documents under generated keys.
func (h *CollectionHandler) AddBulk(ctx context.Context, req *models.AddBulkRequest) (*models.KeysResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	keys, err := c.AddBulk(ctx, req.Values)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.KeysResponse{Keys: keys}, nil
}

// Set stores a document at an explicit key.
func (h *CollectionHandler) Set(ctx context.Context, req *models.SetRequest) (*models.OKResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, string(req.Key), req.Value); err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.OKResponse{OK: true}, nil
}

// SetBulk stores documents at explicit keys.
func (h *CollectionHandler) SetBulk(ctx context.Context, req *models.SetBulkRequest) (*models.OKResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if err := c.SetBulk(ctx, jsondb.Strings(req.Keys), req.Values); err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.OKResponse{OK: true}, nil
}

// Remove deletes one document.
func (h *CollectionHandler) Remove(ctx context.Context, req *models.GetRequest) (*models.OKResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if err := c.Remove(ctx, string(req.Key)); err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.OKResponse{OK: true}, nil
}

// RemoveBulk deletes several documents.
func (h *CollectionHandler) RemoveBulk(ctx context.Context, req *models.KeysRequest) (*models.OKResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveBulk(ctx, jsondb.Strings(req.Keys)); err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.OKResponse{OK: true}, nil
}

// EditField applies one field edit.
func (h *CollectionHandler) EditField(ctx context.Context, req *models.EditFieldRequest) (*models.EditResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	ok, err := c.EditField(ctx, req.EditOperation)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EditResponse{Success: ok}, nil
}

// EditFieldBulk applies several field edits in one write.
func (h *CollectionHandler) EditFieldBulk(ctx context.Context, req *models.EditFieldBulkRequest) (*models.EditBulkResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	results, err := c.EditFieldBulk(ctx, req.Edits)
	if err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.EditBulkResponse{Results: results}, nil
}

// WriteRaw replaces the whole collection.
func (h *CollectionHandler) WriteRaw(ctx context.Context, req *models.WriteRawRequest) (*models.OKResponse, error) {
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if err := c.WriteRaw(ctx, req.Content); err != nil {
		return nil, errors.FromStore(err)
	}
	return &models.OKResponse{OK: true}, nil
}
