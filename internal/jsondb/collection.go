package jsondb

import (
	"context"
	"crypto/sha1" //nolint:gosec // G505: content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Config describes one collection.
type Config struct {
	// Name identifies the collection.
	Name string
	// Path is the backing JSON file.
	Path string
	// Default is the JSON object written when the file does not exist. Empty
	// means "{}".
	Default string
	// AutoKey enables Add and AddBulk, which generate keys.
	AutoKey bool
	// AutoIncrement makes generated keys sequential integers instead of
	// random identifiers.
	AutoIncrement bool
}

// Collection is a set of documents stored in one JSON file.
//
// Collection holds no document state: every call reads the file.
type Collection struct {
	cfg  Config
	file *LockedFile
}

// Entry is a document tagged with its key.
type Entry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// NewCollection returns a Collection for cfg. The file is created on first
// access.
func NewCollection(cfg Config) (*Collection, error) {
	if cfg.Name == "" {
		return nil, errors.New("collection name is required")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("collection %q: path is required", cfg.Name)
	}
	initial := "{}"
	if strings.TrimSpace(cfg.Default) != "" {
		d, err := ParseDocument([]byte(cfg.Default))
		if err != nil {
			return nil, fmt.Errorf("collection %q: invalid default: %w", cfg.Name, err)
		}
		b, err := d.MarshalJSON()
		if err != nil {
			return nil, err
		}
		initial = string(b)
	}
	file, err := NewLockedFile(cfg.Path, []byte(initial))
	if err != nil {
		return nil, err
	}
	return &Collection{cfg: cfg, file: file}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.cfg.Name
}

// Config returns the collection configuration.
func (c *Collection) Config() Config {
	return c.cfg
}

func (c *Collection) parse(data []byte) (*Document, error) {
	d, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupted collection %s: %w", ErrIO, c.file.Path(), err)
	}
	return d, nil
}

// load reads the collection under a shared lock.
func (c *Collection) load(ctx context.Context) (*Document, error) {
	data, err := c.file.Read(ctx)
	if err != nil {
		return nil, err
	}
	return c.parse(data)
}

// modify holds the exclusive lock for the entire read-modify-write cycle. fn
// reports whether it changed the document; nothing is written otherwise.
func (c *Collection) modify(ctx context.Context, fn func(coll *Document) (bool, error)) error {
	h, data, err := c.file.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = h.Release()
	}()
	coll, err := c.parse(data)
	if err != nil {
		return err
	}
	changed, err := fn(coll)
	if err != nil || !changed {
		return err
	}
	out, err := coll.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: failed to encode collection: %w", ErrIO, err)
	}
	_, err = h.Write(out)
	return err
}

// Get returns the document stored at key.
func (c *Collection) Get(ctx context.Context, key string) (Value, error) {
	coll, err := c.load(ctx)
	if err != nil {
		return Value{}, err
	}
	v, ok := coll.Get(key)
	if !ok {
		return Value{}, fmt.Errorf("%w: key %q in collection %q", ErrNotFound, key, c.cfg.Name)
	}
	return v, nil
}

// GetBulk returns the documents stored at keys, in the order of keys. Missing
// keys are skipped.
func (c *Collection) GetBulk(ctx context.Context, keys []string) ([]Entry, error) {
	coll, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if v, ok := coll.Get(k); ok {
			out = append(out, Entry{Key: k, Value: v})
		}
	}
	return out, nil
}

// SearchKeys returns the documents stored at keys. It is GetBulk under the
// name clients use for key lookups.
func (c *Collection) SearchKeys(ctx context.Context, keys []string) ([]Entry, error) {
	return c.GetBulk(ctx, keys)
}

// ReadRaw returns the whole collection.
func (c *Collection) ReadRaw(ctx context.Context) (*Document, error) {
	return c.load(ctx)
}

// WriteRaw replaces the whole collection with content.
func (c *Collection) WriteRaw(ctx context.Context, content Value) error {
	if content.Kind() != KindObject {
		return fmt.Errorf("%w: raw content must be an object, got %s", ErrValidation, content.Kind())
	}
	return c.modify(ctx, func(coll *Document) (bool, error) {
		*coll = *content.Document()
		return true, nil
	})
}

// SHA1 returns the hex SHA-1 of the collection file content.
func (c *Collection) SHA1(ctx context.Context) (string, error) {
	data, err := c.file.Read(ctx)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data) //nolint:gosec // G401: see import
	return hex.EncodeToString(sum[:]), nil
}

func validateDocument(v Value) error {
	if v.Kind() != KindObject {
		return fmt.Errorf("%w: document must be an object, got %s", ErrValidation, v.Kind())
	}
	return nil
}

// Add stores doc under a generated key and returns the key.
func (c *Collection) Add(ctx context.Context, doc Value) (string, error) {
	keys, err := c.AddBulk(ctx, []Value{doc})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

// AddBulk stores docs under generated keys in one write. Keys are returned in
// the order of docs.
func (c *Collection) AddBulk(ctx context.Context, docs []Value) ([]string, error) {
	if !c.cfg.AutoKey {
		return nil, fmt.Errorf("%w: collection %q requires explicit keys", ErrConfiguration, c.cfg.Name)
	}
	for i, d := range docs {
		if err := validateDocument(d); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	if len(docs) == 0 {
		return []string{}, nil
	}
	var keys []string
	err := c.modify(ctx, func(coll *Document) (bool, error) {
		g := newKeyGenerator(coll, c.cfg.AutoIncrement)
		keys = make([]string, len(docs))
		for i, d := range docs {
			keys[i] = g.newKey()
			coll.Set(keys[i], d)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Set stores doc at key, replacing any previous document.
func (c *Collection) Set(ctx context.Context, key string, doc Value) error {
	return c.SetBulk(ctx, []string{key}, []Value{doc})
}

// SetBulk stores docs[i] at keys[i] in one write.
func (c *Collection) SetBulk(ctx context.Context, keys []string, docs []Value) error {
	if len(keys) != len(docs) {
		return fmt.Errorf("%w: got %d keys and %d documents", ErrValidation, len(keys), len(docs))
	}
	for i := range keys {
		if keys[i] == "" {
			return fmt.Errorf("%w: key %d is empty", ErrValidation, i)
		}
		if err := validateDocument(docs[i]); err != nil {
			return fmt.Errorf("document %q: %w", keys[i], err)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.modify(ctx, func(coll *Document) (bool, error) {
		for i := range keys {
			coll.Set(keys[i], docs[i])
		}
		return true, nil
	})
}

// Remove deletes the document at key. A missing key is not an error.
func (c *Collection) Remove(ctx context.Context, key string) error {
	return c.RemoveBulk(ctx, []string{key})
}

// RemoveBulk deletes the documents at keys. The file is only rewritten when
// at least one key existed.
func (c *Collection) RemoveBulk(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.modify(ctx, func(coll *Document) (bool, error) {
		changed := false
		for _, k := range keys {
			if coll.Delete(k) {
				changed = true
			}
		}
		return changed, nil
	})
}

// Randomize enables the sampling step of Search. A nil Seed samples with a
// random seed.
type Randomize struct {
	Enabled bool
	Seed    *int64
}

// Search returns the documents matching every condition, in file order. With
// random enabled, the matches are then sampled.
func (c *Collection) Search(ctx context.Context, conditions []Condition, random Randomize) ([]Entry, error) {
	if err := ValidateConditions(conditions); err != nil {
		return nil, err
	}
	coll, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []Entry{}
	for k, v := range coll.All() {
		if Evaluate(v, conditions) {
			out = append(out, Entry{Key: k, Value: v})
		}
	}
	if !random.Enabled {
		return out, nil
	}
	byKey := make(map[string]Value, len(out))
	keys := make([]string, len(out))
	for i, e := range out {
		byKey[e.Key] = e.Value
		keys[i] = e.Key
	}
	sampled := Sample(keys, random.Seed, -1, 0)
	out = make([]Entry, len(sampled))
	for i, k := range sampled {
		out[i] = Entry{Key: k, Value: byKey[k]}
	}
	return out, nil
}

// Select returns every document reduced to fields. No fields returns whole
// documents.
func (c *Collection) Select(ctx context.Context, fields []string) ([]Entry, error) {
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrValidation)
		}
	}
	coll, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, coll.Len())
	for k, v := range coll.All() {
		if len(fields) != 0 {
			v = project(v, fields)
		}
		out = append(out, Entry{Key: k, Value: v})
	}
	return out, nil
}

func project(v Value, fields []string) Value {
	d := NewDocument()
	if v.Kind() == KindObject {
		for _, f := range fields {
			if fv, ok := v.Document().Get(f); ok {
				d.Set(f, fv)
			}
		}
	}
	return Object(d)
}

// Values returns the distinct values found at field across documents, in
// first-seen order. With flatten, array values contribute their elements.
func (c *Collection) Values(ctx context.Context, field string, flatten bool) ([]Value, error) {
	path := splitPath(field)
	if path == nil {
		return nil, fmt.Errorf("%w: invalid field %q", ErrValidation, field)
	}
	coll, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []Value{}
	add := func(v Value) error {
		b, err := v.MarshalJSON()
		if err != nil {
			return err
		}
		if _, ok := seen[string(b)]; ok {
			return nil
		}
		seen[string(b)] = struct{}{}
		out = append(out, v)
		return nil
	}
	for _, doc := range coll.All() {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		if flatten && v.Kind() == KindArray {
			for _, item := range v.Items() {
				if err := add(item); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Random returns up to limit documents drawn by Sample, in draw order. A
// limit of -1 returns all documents after offset.
func (c *Collection) Random(ctx context.Context, limit int, seed *int64, offset int) ([]Entry, error) {
	if limit < -1 {
		return nil, fmt.Errorf("%w: max must be -1 or more, got %d", ErrValidation, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be positive, got %d", ErrValidation, offset)
	}
	coll, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	keys := Sample(coll.Keys(), seed, limit, offset)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		v, _ := coll.Get(k)
		out[i] = Entry{Key: k, Value: v}
	}
	return out, nil
}

// EditField applies one edit. It returns false, and writes nothing, when the
// edit is malformed or its precondition does not hold.
func (c *Collection) EditField(ctx context.Context, edit EditOperation) (bool, error) {
	results, err := c.EditFieldBulk(ctx, []EditOperation{edit})
	if err != nil {
		return false, err
	}
	return results[0], nil
}

// EditFieldBulk applies edits in order against one snapshot and writes once.
// A failed edit does not stop the others; results[i] reports edits[i].
func (c *Collection) EditFieldBulk(ctx context.Context, edits []EditOperation) ([]bool, error) {
	results := make([]bool, len(edits))
	valid := false
	for i := range edits {
		if edits[i].Validate() == nil {
			valid = true
		}
	}
	if !valid {
		return results, nil
	}
	err := c.modify(ctx, func(coll *Document) (bool, error) {
		changed := false
		for i := range edits {
			results[i] = edits[i].apply(coll)
			changed = changed || results[i]
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
