package vecindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/eventbus"
)

// Opener produces a fresh Index handle for a corpus. For the local backend
// this reopens the directory after a swap; for Qdrant the alias flip happens
// server-side so the same client is returned again.
type Opener func() (Index, error)

// handle is the swappable slot for one corpus. Readers load the pointer,
// reloads store a new one; in-flight searches keep the handle they loaded,
// so an old index stays usable until its last reader is done.
type handle struct {
	ptr atomic.Pointer[Index]
}

// Catalog maps corpus names to live index handles and hot-reloads them when
// a rebuild event arrives on the bus.
type Catalog struct {
	mu         sync.RWMutex
	openers    map[string]Opener
	handles    map[string]*handle
	embedModel string
	log        *zap.Logger
}

// NewCatalog builds an empty catalog.
func NewCatalog(log *zap.Logger) *Catalog {
	return &Catalog{
		openers: make(map[string]Opener),
		handles: make(map[string]*handle),
		log:     log,
	}
}

// RequireEmbedModel makes the catalog refuse any index whose recorded
// embed_model meta differs from model. Query vectors and stored vectors are
// only comparable when both come from the same embedding model. Indexes
// without meta (the Qdrant backend) are served as-is.
func (c *Catalog) RequireEmbedModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embedModel = model
}

// metaReader is the optional index facet carrying build-time metadata.
type metaReader interface {
	Meta(ctx context.Context, key string) (string, error)
}

// verify rejects an index built with a different embedding model.
func (c *Catalog) verify(name string, idx Index) error {
	c.mu.RLock()
	want := c.embedModel
	c.mu.RUnlock()
	if want == "" {
		return nil
	}
	mr, ok := idx.(metaReader)
	if !ok {
		return nil
	}
	got, err := mr.Meta(context.Background(), MetaEmbedModel)
	if err != nil {
		return fmt.Errorf("vecindex: read embed model of %q: %w", name, err)
	}
	if got != "" && got != want {
		return fmt.Errorf("vecindex: corpus %q was built with embed model %q, queries use %q", name, got, want)
	}
	return nil
}

// Register adds a corpus and opens its initial handle. A corpus whose index
// does not exist yet, or was built with the wrong embedding model, is
// registered with a nil handle; Get reports it as unavailable until the
// first successful reload.
func (c *Catalog) Register(name string, open Opener) error {
	c.mu.Lock()
	if _, dup := c.openers[name]; dup {
		c.mu.Unlock()
		return fmt.Errorf("vecindex: corpus %q already registered", name)
	}
	c.openers[name] = open
	h := &handle{}
	c.handles[name] = h
	c.mu.Unlock()

	idx, err := open()
	if err == nil {
		err = c.verify(name, idx)
	}
	if err != nil {
		c.log.Warn("corpus index unavailable at startup",
			zap.String("corpus", name), zap.Error(err))
		return nil
	}
	h.ptr.Store(&idx)
	return nil
}

// Get returns the current index for a corpus.
func (c *Catalog) Get(name string) (Index, error) {
	c.mu.RLock()
	h, ok := c.handles[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vecindex: unknown corpus %q", name)
	}
	p := h.ptr.Load()
	if p == nil {
		return nil, fmt.Errorf("vecindex: corpus %q has no built index", name)
	}
	return *p, nil
}

// Corpora lists the registered corpus names.
func (c *Catalog) Corpora() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.openers))
	for name := range c.openers {
		names = append(names, name)
	}
	return names
}

// Reload reopens the index for a corpus and swaps it into the handle.
// The previous handle is not closed here: in-flight searches may still hold
// it, and for the local backend the underlying sqlite file stays readable on
// its open descriptor after the directory swap.
func (c *Catalog) Reload(name string) error {
	c.mu.RLock()
	open, ok := c.openers[name]
	h := c.handles[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vecindex: unknown corpus %q", name)
	}
	idx, err := open()
	if err != nil {
		return fmt.Errorf("vecindex: reload %q: %w", name, err)
	}
	if err := c.verify(name, idx); err != nil {
		return err
	}
	h.ptr.Store(&idx)
	return nil
}

// Watch consumes rebuild events until ctx is done, reloading the corpus
// named in each event payload.
func (c *Catalog) Watch(ctx context.Context, bus *eventbus.Bus) {
	events := bus.Subscribe(eventbus.TopicIndexRebuilt)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			corpus, _ := ev.Payload.(string)
			if corpus == "" {
				continue
			}
			if err := c.Reload(corpus); err != nil {
				c.log.Error("index reload failed",
					zap.String("corpus", corpus), zap.Error(err))
				continue
			}
			c.log.Info("index reloaded", zap.String("corpus", corpus))
		}
	}
}
