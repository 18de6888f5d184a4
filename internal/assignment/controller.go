// Package assignment implements the category assignment workflow for one catalog item:
// taxonomy search and browse, reconciliation with the tenant's categories, creation on
// explicit confirmation and the final assignment.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"storefront/categorizer/internal/domain"
	"storefront/categorizer/internal/domain/event"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrClosed is returned by every operation once the controller was cancelled or has
// completed an assignment.
var ErrClosed = errors.New("assignment session is closed")

type TaxonomySource interface {
	Search(ctx context.Context, query string, limit int) (iter.Seq[domain.TaxonomyNode], error)
	Browse(ctx context.Context, parentPath []string) ([]domain.TaxonomyNode, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context, tenantID string) ([]domain.TenantCategory, error)
	CreateCategory(ctx context.Context, tenantID string, category domain.NewCategory) (domain.TenantCategory, error)
}

type ItemAssigner interface {
	AssignItemCategory(ctx context.Context, tenantID, itemID, categoryID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e event.Event) (string, error)
}

type Deps struct {
	Taxonomy   TaxonomySource
	Categories CategoryStore
	Assigner   ItemAssigner
	Publisher  EventPublisher // Optional
}

type Options struct {
	Debounce       time.Duration
	MinQueryLength int
	SearchLimit    int
	Clock          clock.Clock
}

func (o Options) withDefaults() Options {
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = 2
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Controller owns the selection state of one assignment dialog.
// It is safe for concurrent use.
type Controller struct {
	sessionID string
	tenantID  string
	itemID    string

	deps      Deps
	opts      Options
	debouncer *Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	sel        domain.Selection
	candidates []domain.TenantCategory
	suggestion string
	formErr    string
	createdID  string // Category created in this session, if any
	createdAt  time.Time
	updatedAt  time.Time

	searchSeq     uint64
	searching     bool
	searchResults []domain.TaxonomyNode
	searchErr     string

	browseSeq   uint64
	browsing    bool
	browseNodes []domain.TaxonomyNode
	browseErr   string
	rootNodes   []domain.TaxonomyNode
	rootLoaded  bool
}

func New(sessionID, tenantID, itemID string, deps Deps, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	now := opts.Clock.Now()

	return &Controller{
		sessionID: sessionID,
		tenantID:  tenantID,
		itemID:    itemID,
		deps:      deps,
		opts:      opts,
		debouncer: NewDebouncer(opts.Clock, opts.Debounce),
		ctx:       ctx,
		cancel:    cancel,
		sel: domain.Selection{
			Mode:       domain.ModeSearch,
			BrowsePath: []string{},
		},
		createdAt: now,
		updatedAt: now,
	}
}

// Restore rebuilds a controller from a persisted snapshot. Lookup results are not part of
// a snapshot; a session restored in browse mode refetches its current level.
func Restore(snap domain.Snapshot, deps Deps, opts Options) *Controller {
	c := New(snap.SessionID, snap.TenantID, snap.ItemID, deps, opts)

	c.mu.Lock()
	c.sel = snap.Selection
	if c.sel.BrowsePath == nil {
		c.sel.BrowsePath = []string{}
	}
	c.candidates = snap.Candidates
	c.suggestion = snap.Suggestion
	c.createdID = snap.CreatedCategoryID
	c.createdAt = snap.CreatedAt
	c.updatedAt = snap.UpdatedAt
	browse := c.sel.Mode == domain.ModeBrowse
	path := slices.Clone(c.sel.BrowsePath)
	c.mu.Unlock()

	if browse {
		if _, err := c.NavigateBrowse(path); err != nil {
			log.Warnf("⚠️ Failed to refetch browse level for restored session %s: %v", snap.SessionID, err)
		}
	}

	return c
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

// SetMode switches between search and browse, resetting query, browse path and the
// selected taxonomy node. The returned channel closes once a triggered root fetch settles.
func (c *Controller) SetMode(mode domain.Mode) (<-chan struct{}, error) {
	if _, err := domain.ParseMode(mode.String()); err != nil {
		return nil, domain.NewError(domain.ValidationFailure, err.Error(), err)
	}

	c.debouncer.Cancel()

	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	c.sel.Mode = mode
	c.sel.Query = ""
	c.sel.BrowsePath = []string{}
	c.sel.SelectedTaxonomyNode = nil
	c.candidates = nil
	c.suggestion = ""
	c.formErr = ""

	// In-flight lookups of the previous mode must not land.
	c.searchSeq++
	c.searching = false
	c.searchResults = nil
	c.searchErr = ""
	c.browseSeq++
	c.browsing = false
	c.browseErr = ""
	c.touch()

	if mode != domain.ModeBrowse {
		c.mu.Unlock()
		close(done)
		return done, nil
	}

	if c.rootLoaded {
		c.browseNodes = c.rootNodes
		c.mu.Unlock()
		close(done)
		return done, nil
	}

	seq := c.startBrowseLocked()
	c.mu.Unlock()

	go c.runBrowse(seq, nil, done)
	return done, nil
}

// Search records query and, for queries of at least the minimum length, schedules a
// debounced lookup. The returned channel closes when that lookup settles or is superseded.
func (c *Controller) Search(query string) (<-chan struct{}, error) {
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.sel.Mode != domain.ModeSearch {
		c.mu.Unlock()
		return nil, domain.NewError(domain.ValidationFailure, "switch to search mode before searching", nil)
	}

	c.sel.Query = query
	c.touch()

	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < c.opts.MinQueryLength {
		c.mu.Unlock()
		c.debouncer.Cancel()
		close(done)
		return done, nil
	}

	c.searchSeq++
	seq := c.searchSeq
	c.mu.Unlock()

	c.debouncer.Schedule(
		func() { c.runSearch(seq, trimmed, done) },
		func() { c.dropSearch(seq, done) },
	)
	return done, nil
}

func (c *Controller) runSearch(seq uint64, query string, done chan struct{}) {
	defer close(done)

	c.mu.Lock()
	if c.closed || seq != c.searchSeq {
		c.mu.Unlock()
		return
	}
	c.searching = true
	ctx := c.ctx
	c.mu.Unlock()

	var nodes []domain.TaxonomyNode
	results, err := c.deps.Taxonomy.Search(ctx, query, c.opts.SearchLimit)
	if err == nil {
		nodes = slices.Collect(results)
		if nodes == nil {
			nodes = []domain.TaxonomyNode{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.searchSeq {
		log.Debugf("Discarding stale search response for %q in session %s", query, c.sessionID)
		return
	}

	c.searching = false
	if err != nil {
		log.Warnf("⚠️ Taxonomy search %q failed in session %s: %v", query, c.sessionID, err)
		c.searchErr = domain.MessageOf(err)
		return
	}

	c.searchErr = ""
	c.searchResults = nodes
	c.touch()
}

func (c *Controller) dropSearch(seq uint64, done chan struct{}) {
	c.mu.Lock()
	if seq == c.searchSeq {
		c.searching = false
	}
	c.mu.Unlock()
	close(done)
}

// NavigateBrowse moves to path, which may extend the current path by one segment or
// truncate it to any prefix including the root, and fetches the children of that level.
func (c *Controller) NavigateBrowse(path []string) (<-chan struct{}, error) {
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.sel.Mode != domain.ModeBrowse {
		c.mu.Unlock()
		return nil, domain.NewError(domain.ValidationFailure, "switch to browse mode before browsing", nil)
	}

	c.sel.BrowsePath = slices.Clone(path)
	if c.sel.BrowsePath == nil {
		c.sel.BrowsePath = []string{}
	}
	seq := c.startBrowseLocked()
	c.touch()
	c.mu.Unlock()

	go c.runBrowse(seq, slices.Clone(path), done)
	return done, nil
}

func (c *Controller) startBrowseLocked() uint64 {
	c.browseSeq++
	c.browsing = true
	return c.browseSeq
}

func (c *Controller) runBrowse(seq uint64, path []string, done chan struct{}) {
	defer close(done)

	nodes, err := c.deps.Taxonomy.Browse(c.ctx, path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.browseSeq {
		log.Debugf("Discarding stale browse response for %q in session %s", domain.JoinPath(path), c.sessionID)
		return
	}

	c.browsing = false
	if err != nil {
		log.Warnf("⚠️ Taxonomy browse %q failed in session %s: %v", domain.JoinPath(path), c.sessionID, err)
		c.browseErr = domain.MessageOf(err)
		return
	}

	if nodes == nil {
		nodes = []domain.TaxonomyNode{}
	}
	c.browseErr = ""
	c.browseNodes = nodes
	if len(path) == 0 {
		c.rootNodes = nodes
		c.rootLoaded = true
	}
	c.touch()
}

// SelectTaxonomyNode records node and reconciles it with the tenant's categories. A single
// mapped category is selected directly; several are offered as candidates; none leaves an
// editable creation suggestion and writes nothing.
func (c *Controller) SelectTaxonomyNode(ctx context.Context, node domain.TaxonomyNode) (Resolution, error) {
	if strings.TrimSpace(node.ID) == "" {
		return Resolution{}, c.fail(domain.NewError(domain.ValidationFailure, "taxonomy node has no id", nil))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Resolution{}, ErrClosed
	}
	picked := node
	picked.Path = slices.Clone(node.Path)
	if len(picked.Path) == 0 {
		picked.Path = []string{node.Name}
	}
	c.sel.SelectedTaxonomyNode = &picked
	// The previous node's category must not survive a failed or pending lookup.
	c.sel.SelectedTenantCategoryID = ""
	c.candidates = nil
	c.suggestion = ""
	c.formErr = ""
	c.touch()
	tenantID := c.tenantID
	c.mu.Unlock()

	categories, err := c.deps.Categories.ListCategories(ctx, tenantID)
	if err != nil {
		return Resolution{}, c.fail(asKind(domain.LookupFailure, err))
	}

	res := ResolveExistingCategory(node.ID, categories)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Resolution{}, ErrClosed
	}
	if c.sel.SelectedTaxonomyNode == nil || c.sel.SelectedTaxonomyNode.ID != node.ID {
		// Another node was picked while the category list loaded.
		return res, nil
	}

	switch res.Kind() {
	case SingleMatch:
		c.sel.SelectedTenantCategoryID = res.Matches[0].ID
		log.Debugf("Taxonomy node %s resolved to category %s in session %s", node.ID, res.Matches[0].ID, c.sessionID)
	case MultipleMatches:
		c.sel.SelectedTenantCategoryID = ""
		c.candidates = res.Matches
		log.Infof("Taxonomy node %s maps to %d categories of tenant %s, asking for a choice", node.ID, len(res.Matches), tenantID)
	default:
		c.sel.SelectedTenantCategoryID = ""
		c.suggestion = node.Name
	}
	c.touch()

	return res, nil
}

// ChooseCandidate confirms one of the categories offered after an ambiguous selection.
func (c *Controller) ChooseCandidate(categoryID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	for _, candidate := range c.candidates {
		if candidate.ID == categoryID {
			c.sel.SelectedTenantCategoryID = candidate.ID
			c.candidates = nil
			c.formErr = ""
			c.touch()
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	return c.fail(domain.NewError(domain.ValidationFailure,
		fmt.Sprintf("category %q is not one of the offered candidates", categoryID), nil))
}

// ConfirmCreateNewCategory creates a tenant category mapped to the selected taxonomy node.
// On failure the selection is left as it was so the user can retry.
func (c *Controller) ConfirmCreateNewCategory(ctx context.Context, name string) (domain.TenantCategory, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.TenantCategory{}, ErrClosed
	}
	var node domain.TaxonomyNode
	if c.sel.SelectedTaxonomyNode != nil {
		node = *c.sel.SelectedTaxonomyNode
	}
	c.mu.Unlock()

	if node.ID == "" {
		return domain.TenantCategory{}, c.fail(domain.NewError(domain.ValidationFailure, "select a taxonomy category first", nil))
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.TenantCategory{}, c.fail(domain.NewError(domain.ValidationFailure, "category name is required", nil))
	}

	created, err := c.deps.Categories.CreateCategory(ctx, c.tenantID, domain.NewCategory{
		Name:             name,
		GoogleCategoryID: node.ID,
	})
	if err != nil {
		return domain.TenantCategory{}, c.fail(asKind(domain.CreationConflict, err))
	}

	c.mu.Lock()
	c.sel.SelectedTenantCategoryID = created.ID
	c.createdID = created.ID
	c.suggestion = ""
	c.candidates = nil
	c.formErr = ""
	c.touch()
	c.mu.Unlock()

	c.publish(ctx, &event.CategoryCreated{
		ID:               uuid.NewString(),
		TenantID:         c.tenantID,
		CategoryID:       created.ID,
		Name:             created.Name,
		GoogleCategoryID: node.ID,
		TaxonomyPath:     node.Path,
		OccurredAt:       c.opts.Clock.Now(),
	})

	return created, nil
}

// Assign applies the resolved tenant category to the item and closes the controller.
// On failure nothing is cleared.
func (c *Controller) Assign(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	categoryID := c.sel.SelectedTenantCategoryID
	var googleID string
	if c.sel.SelectedTaxonomyNode != nil {
		googleID = c.sel.SelectedTaxonomyNode.ID
	}
	created := categoryID != "" && categoryID == c.createdID
	c.mu.Unlock()

	if categoryID == "" {
		return "", c.fail(domain.NewError(domain.ValidationFailure, "choose or create a category first", nil))
	}

	if err := c.deps.Assigner.AssignItemCategory(ctx, c.tenantID, c.itemID, categoryID); err != nil {
		return "", c.fail(asKind(domain.AssignmentFailure, err))
	}

	c.publish(ctx, &event.CategoryAssigned{
		ID:               uuid.NewString(),
		SessionID:        c.sessionID,
		TenantID:         c.tenantID,
		ItemID:           c.itemID,
		CategoryID:       categoryID,
		GoogleCategoryID: googleID,
		Created:          created,
		OccurredAt:       c.opts.Clock.Now(),
	})

	c.close()
	return categoryID, nil
}

// Cancel discards all state without touching the backend.
func (c *Controller) Cancel() {
	c.close()
}

func (c *Controller) close() {
	c.debouncer.Cancel()

	c.mu.Lock()
	c.closed = true
	c.sel = domain.Selection{Mode: c.sel.Mode, BrowsePath: []string{}}
	c.candidates = nil
	c.suggestion = ""
	c.searchResults = nil
	c.browseNodes = nil
	c.searching = false
	c.browsing = false
	c.touch()
	c.mu.Unlock()

	c.cancel()
}

func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fail records err as the form error and returns it.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.formErr = domain.MessageOf(err)
	c.mu.Unlock()
	return err
}

func (c *Controller) publish(ctx context.Context, e event.Event) {
	if c.deps.Publisher == nil {
		return
	}
	if _, err := c.deps.Publisher.Publish(ctx, e); err != nil {
		log.Errorf("❌ Failed to publish %s for session %s: %v", e.EventType(), c.sessionID, err)
	}
}

// touch must be called with mu held.
func (c *Controller) touch() {
	c.updatedAt = c.opts.Clock.Now()
}

// UpdatedAt reports the time of the last state change.
func (c *Controller) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

// asKind keeps err's kind when it already has one and wraps it as kind otherwise.
func asKind(kind domain.ErrorKind, err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.NewError(kind, err.Error(), err)
}
