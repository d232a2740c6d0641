package controller

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/readmark/extsync/core/authstate"
	"github.com/readmark/extsync/core/kvstore"
	"github.com/readmark/extsync/core/logger"
	"github.com/readmark/extsync/core/message"
	"github.com/readmark/extsync/core/urlcache"
	"github.com/readmark/extsync/pkg/urlnorm"
)

// BadgeSurface renders the visible badge. The surface may transiently not
// exist; render failures are expected and retried on the next transition.
type BadgeSurface interface {
	Render(ctx context.Context, state BadgeState) error
}

// Notifier shows a user-visible notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// BookmarkSaver persists a page remotely on behalf of the session's user and
// returns a user-facing confirmation message. The hosted database and its
// protocol live entirely behind this interface.
type BookmarkSaver interface {
	Save(ctx context.Context, sess authstate.Session, url, title string) (string, error)
}

// Controller is the long-running background orchestrator.
type Controller struct {
	auth  *authstate.Manager
	cache *urlcache.Cache
	bus   message.Bus
	store kvstore.Store

	saver    BookmarkSaver
	badge    BadgeSurface
	notifier Notifier
	logger   *slog.Logger

	settingsKey string

	mu             sync.Mutex
	activeURL      string // normalized; empty when restricted or no page
	activeStatus   PageStatus
	signInNotified bool

	renderMu  sync.Mutex
	lastBadge *BadgeState // guarded by renderMu, not mu
}

// Option configures a Controller.
type Option func(*Controller)

// WithSaver sets the remote bookmark persistence collaborator.
func WithSaver(saver BookmarkSaver) Option {
	return func(c *Controller) {
		c.saver = saver
	}
}

// WithBadgeSurface sets the badge rendering surface.
func WithBadgeSurface(badge BadgeSurface) Option {
	return func(c *Controller) {
		c.badge = badge
	}
}

// WithNotifier sets the user notification surface.
func WithNotifier(notifier Notifier) Option {
	return func(c *Controller) {
		c.notifier = notifier
	}
}

// WithSettingsKey overrides the store key holding user settings.
func WithSettingsKey(key string) Option {
	return func(c *Controller) {
		if key != "" {
			c.settingsKey = key
		}
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a background controller over its collaborators. Badge surface,
// notifier and saver are optional; absent ones degrade to no-ops.
func New(auth *authstate.Manager, cache *urlcache.Cache, bus message.Bus, store kvstore.Store, opts ...Option) *Controller {
	c := &Controller{
		auth:         auth,
		cache:        cache,
		bus:          bus,
		store:        store,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		settingsKey:  DefaultSettingsKey,
		activeStatus: StatusRestricted,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Rehydrate treats the current wake as a possible cold start: the session is
// reloaded from the store and the cache is accepted as empty. Safe to call on
// every resume.
func (c *Controller) Rehydrate(ctx context.Context) error {
	if err := c.auth.Initialize(ctx); err != nil {
		return err
	}
	c.logger.Debug("rehydrated background state",
		slog.Bool("authenticated", c.auth.IsAuthenticated(ctx)))
	c.refreshBadge(ctx)
	return nil
}

// Run rehydrates, subscribes to auth transitions and bus broadcasts, and
// serves inbound commands until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Rehydrate(ctx); err != nil {
		return err
	}

	signedIn := c.auth.AddListener(authstate.EventSignedIn, func(*authstate.Session) {
		c.mu.Lock()
		c.signInNotified = false
		c.mu.Unlock()
		c.refreshBadge(ctx)
	})
	defer c.auth.RemoveListener(authstate.EventSignedIn, signedIn)

	signedOut := c.auth.AddListener(authstate.EventSignedOut, func(*authstate.Session) {
		// Sign-out collapses every page state; the badge is cleared no
		// matter what the cache says.
		c.refreshBadge(ctx)
	})
	defer c.auth.RemoveListener(authstate.EventSignedOut, signedOut)

	// Broadcasts carry the defense-in-depth auth updates and bookmark events
	// from other contexts; they flow through the same handler as requests.
	broadcasts, err := c.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for cmd := range broadcasts {
			c.Handle(ctx, cmd)
		}
	}()

	return c.bus.Serve(ctx, c.Handle)
}

// Handle processes one inbound command and returns the response to marshal.
// Malformed and unknown commands become uniform {success:false, error}
// responses; nothing escapes as a panic.
func (c *Controller) Handle(ctx context.Context, cmd message.Command) any {
	payload, err := message.DecodePayload(cmd)
	if err != nil {
		return message.FailErr(err)
	}

	switch p := payload.(type) {
	case message.MarkAsRead:
		return c.handleMarkAsRead(ctx, p)
	case message.BookmarkSaved:
		return c.handleBookmarkEvent(ctx, p.URL)
	case message.BookmarkUpdated:
		return c.handleBookmarkEvent(ctx, p.URL)
	case message.GetAuthState:
		return c.handleGetAuthState(ctx)
	case message.CheckURLStatus:
		// The response only acknowledges; the status itself lands on the
		// badge asynchronously.
		c.refreshBadge(ctx)
		return message.OK()
	case message.URLStatusResult:
		return c.handleStatusResult(ctx, p)
	case message.AuthStateChanged:
		return c.handleAuthBroadcast(ctx, p)
	case message.GetSettings:
		return c.handleGetSettings(ctx)
	case message.UpdateSettings:
		return c.handleUpdateSettings(ctx, p)
	default:
		return message.FailErr(message.ErrUnknownType)
	}
}

// HandleRaw parses a wire message and handles it. Entry point for transports
// delivering raw bytes.
func (c *Controller) HandleRaw(ctx context.Context, data []byte) any {
	cmd, err := message.Parse(data)
	if err != nil {
		return message.FailErr(err)
	}
	return c.Handle(ctx, cmd)
}

// HandleNavigation recomputes state for a navigation or tab activation.
// Restricted schemes get no affordance; otherwise the cache is consulted and
// a miss leaves the page in the unknown state until a UI context reports.
func (c *Controller) HandleNavigation(ctx context.Context, rawURL string) {
	if urlnorm.IsRestricted(rawURL) {
		c.setActive(ctx, "", StatusRestricted)
		return
	}

	norm, err := urlnorm.Normalize(rawURL)
	if err != nil {
		c.setActive(ctx, "", StatusRestricted)
		return
	}

	c.setActive(ctx, norm, c.statusFromCache(norm))
}

// ActiveStatus returns the current page status.
func (c *Controller) ActiveStatus() PageStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeStatus
}

// ActiveURL returns the normalized active page URL, empty when restricted.
func (c *Controller) ActiveURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeURL
}

// Settings returns the persisted settings, falling back to defaults when
// nothing is stored or the stored value is unreadable.
func (c *Controller) Settings(ctx context.Context) (Settings, error) {
	values, err := c.store.Get(ctx, c.settingsKey)
	if err != nil {
		return Settings{}, err
	}

	data, ok := values[c.settingsKey]
	if !ok {
		return DefaultSettings(), nil
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		c.logger.Error("discarding corrupt persisted settings",
			logger.Error(err))
		return DefaultSettings(), nil
	}
	if len(settings.StatusCategories) == 0 {
		return DefaultSettings(), nil
	}
	return settings, nil
}

// SaveSettings persists the settings as a whole-value replacement.
func (c *Controller) SaveSettings(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, map[string]json.RawMessage{c.settingsKey: data})
}

func (c *Controller) handleMarkAsRead(ctx context.Context, p message.MarkAsRead) any {
	norm, err := urlnorm.Normalize(p.URL)
	if err != nil {
		return message.FailErr(err)
	}

	sess, err := c.auth.AuthState(ctx)
	if err != nil {
		c.logger.Error("failed to load auth state", logger.Error(err))
		return message.Fail("failed to load authentication state")
	}
	if sess == nil {
		c.notifySignInOnce(ctx)
		return message.Fail("authentication required: please sign in to save pages")
	}

	if c.saver == nil {
		return message.Fail("saving is not available")
	}

	confirmation, err := c.saver.Save(ctx, *sess, norm, p.Title)
	if err != nil {
		c.logger.Error("failed to save page",
			logger.URL(norm),
			logger.Error(err))
		return message.Fail("failed to save page")
	}

	c.cache.Set(norm, true)
	c.updateIfActive(ctx, norm, StatusSaved)

	if confirmation == "" {
		confirmation = "Page saved"
	}
	return message.OKMessage(confirmation)
}

// handleBookmarkEvent processes BOOKMARK_SAVED / BOOKMARK_UPDATED. The cached
// judgement for the URL is replaced unconditionally, which makes the handler
// idempotent under duplicate delivery regardless of prior cache state.
func (c *Controller) handleBookmarkEvent(ctx context.Context, rawURL string) any {
	norm, err := urlnorm.Normalize(rawURL)
	if err != nil {
		return message.FailErr(err)
	}

	c.cache.Invalidate(norm)
	c.cache.Set(norm, true)
	c.updateIfActive(ctx, norm, StatusSaved)

	return message.OK()
}

func (c *Controller) handleStatusResult(ctx context.Context, p message.URLStatusResult) any {
	norm, err := urlnorm.Normalize(p.URL)
	if err != nil {
		return message.FailErr(err)
	}

	c.cache.Set(norm, p.Saved)

	status := StatusNotSaved
	if p.Saved {
		status = StatusSaved
	}
	c.updateIfActive(ctx, norm, status)

	return message.OK()
}

// handleAuthBroadcast applies the session carried by an AUTH_STATE_CHANGED
// broadcast. The store watcher covers the same ground, but its delivery is
// best-effort; applying both paths is safe because reconciliation is
// idempotent and last-write-wins.
func (c *Controller) handleAuthBroadcast(ctx context.Context, p message.AuthStateChanged) any {
	c.auth.Reconcile(p.Session)
	c.refreshBadge(ctx)
	return message.OK()
}

func (c *Controller) handleGetAuthState(ctx context.Context) any {
	sess, err := c.auth.AuthState(ctx)
	if err != nil {
		c.logger.Error("failed to load auth state", logger.Error(err))
		return message.Fail("failed to load authentication state")
	}

	if sess == nil {
		return message.AuthStateResult{Authenticated: false, User: nil}
	}
	// Token material never leaves the background process.
	return message.AuthStateResult{
		Authenticated: true,
		User:          &message.User{ID: sess.UserID, Email: sess.Email},
	}
}

func (c *Controller) handleGetSettings(ctx context.Context) any {
	settings, err := c.Settings(ctx)
	if err != nil {
		c.logger.Error("failed to load settings", logger.Error(err))
		return message.Fail("failed to load settings")
	}
	return message.SettingsResult{Success: true, StatusCategories: settings.StatusCategories}
}

func (c *Controller) handleUpdateSettings(ctx context.Context, p message.UpdateSettings) any {
	if len(p.StatusCategories) == 0 {
		return message.Fail("status categories are required")
	}

	if err := c.SaveSettings(ctx, Settings{StatusCategories: p.StatusCategories}); err != nil {
		c.logger.Error("failed to save settings", logger.Error(err))
		return message.Fail("failed to save settings")
	}
	return message.SettingsResult{Success: true, StatusCategories: p.StatusCategories}
}

// statusFromCache derives the page status from a live cache entry, defaulting
// to unknown on a miss. The background process never queries the remote
// database itself.
func (c *Controller) statusFromCache(norm string) PageStatus {
	entry, ok := c.cache.Get(norm)
	switch {
	case !ok:
		return StatusUnknown
	case entry.Saved:
		return StatusSaved
	default:
		return StatusNotSaved
	}
}

// setActive records the active page and renders its badge.
func (c *Controller) setActive(ctx context.Context, norm string, status PageStatus) {
	c.mu.Lock()
	c.activeURL = norm
	c.activeStatus = status
	c.mu.Unlock()

	c.renderBadge(ctx, status)
}

// updateIfActive transitions the state machine when the event concerns the
// active page; events for other pages only touch the cache.
func (c *Controller) updateIfActive(ctx context.Context, norm string, status PageStatus) {
	c.mu.Lock()
	if c.activeURL != norm {
		c.mu.Unlock()
		return
	}
	c.activeStatus = status
	c.mu.Unlock()

	c.renderBadge(ctx, status)
}

// refreshBadge re-derives the active page's status from the cache and
// re-renders.
func (c *Controller) refreshBadge(ctx context.Context) {
	// Derive and store under one lock so a navigation cannot slip in between
	// and receive a status computed for the previous URL.
	c.mu.Lock()
	status := c.activeStatus
	if c.activeURL != "" {
		status = c.statusFromCache(c.activeURL)
		c.activeStatus = status
	}
	c.mu.Unlock()

	c.renderBadge(ctx, status)
}

// renderBadge renders the derived badge exactly once per distinct state. A
// failed render does not record the state, so the next transition retries it.
func (c *Controller) renderBadge(ctx context.Context, status PageStatus) {
	if c.badge == nil {
		return
	}

	state := BadgeFor(c.auth.IsAuthenticated(ctx), status)

	// Compare, render, and record form one critical section so interleaved
	// transitions cannot leave the surface behind lastBadge.
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	if c.lastBadge != nil && *c.lastBadge == state {
		return
	}

	if err := c.badge.Render(ctx, state); err != nil {
		// The badge surface may transiently not exist. lastBadge is
		// untouched; the next transition retries.
		c.logger.Debug("failed to render badge", logger.Error(err))
		return
	}

	c.lastBadge = &state
}

// notifySignInOnce shows the "please sign in" notification at most once per
// signed-out period.
func (c *Controller) notifySignInOnce(ctx context.Context) {
	c.mu.Lock()
	if c.signInNotified || c.notifier == nil {
		c.mu.Unlock()
		return
	}
	c.signInNotified = true
	c.mu.Unlock()

	if err := c.notifier.Notify(ctx, "Sign in required", "Please sign in to save pages"); err != nil {
		c.logger.Debug("failed to show sign-in notification", logger.Error(err))
	}
}
