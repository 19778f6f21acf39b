package coordinator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hemalink/coordinator/internal/eligibility"
	"github.com/hemalink/coordinator/internal/model"
)

// Phase names the coordination states.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseSearching    Phase = "searching"
	PhaseRanking      Phase = "ranking"
	PhaseNotifying    Phase = "notifying"
	PhaseMonitoring   Phase = "monitoring"
	PhaseExpanding    Phase = "expanding"
	PhaseTerminated   Phase = "terminated"
)

// Config holds per-run tunables.
type Config struct {
	PollInterval      time.Duration
	CallTimeout       time.Duration
	InitialRadiusKm   float64
	RadiusIncrementKm float64
	// MaxRadiusKm caps expansion. Zero means unbounded, which mirrors
	// the origin system but is not recommended in production.
	MaxRadiusKm       float64
	InitialBatch      int
	ExpandBatch       int
	SearchLimit       int
	InterventionAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.InitialRadiusKm <= 0 {
		c.InitialRadiusKm = 50
	}
	if c.RadiusIncrementKm <= 0 {
		c.RadiusIncrementKm = 25
	}
	if c.InitialBatch <= 0 {
		c.InitialBatch = 10
	}
	if c.ExpandBatch <= 0 {
		c.ExpandBatch = 5
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 50
	}
	return c
}

// Deps are the run's injected collaborators. They are shared across
// runs and must be safe for concurrent use.
type Deps struct {
	Locations LocationStore
	Search    SearchService
	Ranker    Ranker
	Notifier  Notifier
	Requests  RequestStore
	Responses ResponseStore
	Status    StatusChannel
	Messenger DonorMessenger
	Profiles  ProfileStore
}

// Run coordinates one blood request from search to a terminal state. A
// run owns its mutable state exclusively; nothing is shared between
// runs.
type Run struct {
	SessionID  string
	providerID string
	requestID  string
	request    model.Request
	cfg        Config
	deps       Deps

	mu               sync.Mutex
	phase            Phase
	radiusKm         float64
	matched          map[string]time.Time
	intervened       map[string]bool
	willing          int
	responded        int
	ceilingAnnounced bool
	startedAt        time.Time
}

// Snapshot is a point-in-time view of a run for the control API.
type Snapshot struct {
	SessionID       string    `json:"session_id"`
	ProviderID      string    `json:"provider_id"`
	RequestID       string    `json:"request_id"`
	Phase           Phase     `json:"phase"`
	RadiusKm        float64   `json:"radius_km"`
	MatchedDonors   int       `json:"matched_donors"`
	WillingDonors   int       `json:"willing_donors"`
	RespondedDonors int       `json:"responded_donors"`
	StartedAt       time.Time `json:"started_at"`
}

// NewRun validates the session identifier and request and prepares a
// run. A malformed session id or invalid request is a configuration
// error, not a transient fault.
func NewRun(sessionID string, req model.Request, cfg Config, deps Deps) (*Run, error) {
	providerID, requestID, err := ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request for session %s: %w", sessionID, err)
	}

	cfg = cfg.withDefaults()
	return &Run{
		SessionID:  sessionID,
		providerID: providerID,
		requestID:  requestID,
		request:    req,
		cfg:        cfg,
		deps:       deps,
		phase:      PhaseInitializing,
		radiusKm:   cfg.InitialRadiusKm,
		matched:    make(map[string]time.Time),
		intervened: make(map[string]bool),
		startedAt:  time.Now(),
	}, nil
}

// Coordinate drives the run until a terminal condition or cancellation.
// It blocks for the life of the run.
func (r *Run) Coordinate(ctx context.Context) {
	defer r.setPhase(PhaseTerminated)

	r.publish(ctx, "Starting coordination for blood request. Searching for compatible donors...")

	r.setPhase(PhaseSearching)
	origin, ok := r.lookupLocation(ctx)
	if !ok {
		log.Printf("coordinator: run %s: provider location unavailable", r.SessionID)
		r.publish(ctx, "Provider location is unavailable. Coordination cannot continue.")
		return
	}

	candidates := r.search(ctx, origin)
	if len(candidates) == 0 {
		r.publish(ctx, "No compatible donors found in the initial search area. Please check back later.")
		return
	}
	r.publish(ctx, fmt.Sprintf("Found %d potential donors within %.0fkm radius. Analyzing and ranking by likelihood to donate.",
		len(candidates), r.RadiusKm()))

	r.setPhase(PhaseRanking)
	ranked := r.deps.Ranker.Rank(candidates, r.request.Urgency, r.request.BloodGroup)
	r.publish(ctx, fmt.Sprintf("Ranked %d candidates by likelihood to donate. Top candidates: %s.",
		len(ranked), strings.Join(r.deps.Ranker.Capped(ranked), ", ")))

	r.setPhase(PhaseNotifying)
	r.notifyBatch(ctx, top(ranked, r.cfg.InitialBatch))

	r.setPhase(PhaseMonitoring)
	r.monitor(ctx)
}

// monitor polls until the request leaves the open state, is fulfilled,
// or the run is cancelled. Failures inside one iteration are transient:
// they are logged and the loop retries after the poll interval.
func (r *Run) monitor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if done := r.monitorTick(ctx); done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func (r *Run) monitorTick(ctx context.Context) (done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("coordinator: run %s: recovered in monitoring: %v", r.SessionID, rec)
			done = false
		}
	}()

	req, err := r.getRequest(ctx)
	if err != nil {
		log.Printf("coordinator: run %s: refresh request: %v", r.SessionID, err)
		return false
	}

	// External closure wins over internal state.
	if req.Status != model.RequestOpen {
		r.publish(ctx, fmt.Sprintf("Request is now %s. Coordination ending.", req.Status))
		return true
	}

	responses := r.readResponses(ctx)
	willing, responded := tallyResponses(responses)
	r.setCounts(willing, responded)

	if willing >= r.request.Quantity {
		if err := r.markFulfilled(ctx); err != nil {
			log.Printf("coordinator: run %s: mark fulfilled: %v", r.SessionID, err)
			return false
		}
		r.publish(ctx, fmt.Sprintf("Request fulfilled! %d donors confirmed and are on their way.", willing))
		return true
	}

	if willing > 0 {
		r.publish(ctx, fmt.Sprintf("Progress update: %d donor(s) have confirmed they are available and willing to donate. %d total responses received.",
			willing, responded))
	}

	if r.allMatchedResponded(responses) {
		r.expand(ctx)
	}

	r.checkInterventions(ctx, responses)
	return false
}

// expand widens the search radius and contacts a fresh batch of donors
// not already matched. Expansion stops at the configured radius ceiling.
func (r *Run) expand(ctx context.Context) {
	r.setPhase(PhaseExpanding)
	defer r.setPhase(PhaseMonitoring)

	next := r.RadiusKm() + r.cfg.RadiusIncrementKm
	if r.cfg.MaxRadiusKm > 0 {
		if r.RadiusKm() >= r.cfg.MaxRadiusKm {
			r.announceCeiling(ctx)
			return
		}
		if next > r.cfg.MaxRadiusKm {
			next = r.cfg.MaxRadiusKm
		}
	}
	r.setRadius(next)

	r.publish(ctx, fmt.Sprintf("Expanding search radius to %.0fkm to find additional donors.", next))

	origin, ok := r.lookupLocation(ctx)
	if !ok {
		log.Printf("coordinator: run %s: provider location unavailable during expansion", r.SessionID)
		return
	}

	novel := r.excludeMatched(r.search(ctx, origin))
	if len(novel) == 0 {
		r.publish(ctx, fmt.Sprintf("No additional donors found within %.0fkm radius. Continuing to monitor current matches.", next))
		return
	}

	ranked := r.deps.Ranker.Rank(novel, r.request.Urgency, r.request.BloodGroup)
	r.publish(ctx, fmt.Sprintf("Found %d additional donors in expanded search area. Contacting top candidates: %s.",
		len(novel), strings.Join(r.deps.Ranker.Capped(ranked), ", ")))

	r.notifyBatch(ctx, top(ranked, r.cfg.ExpandBatch))
}

// notifyBatch broadcasts to the batch and merges the successfully
// notified ids into the matched set. Failed ids stay out of the set so
// a later expansion pass can retry them.
func (r *Run) notifyBatch(ctx context.Context, donorIDs []string) {
	if len(donorIDs) == 0 {
		return
	}

	title := "Blood donation needed"
	body := fmt.Sprintf("%s blood needed (%s urgency). Can you help?",
		strings.Join(r.request.BloodGroup, ", "), r.request.Urgency)
	metadata := map[string]string{
		"provider_id": r.providerID,
		"request_id":  r.requestID,
		"urgency":     r.request.Urgency,
	}

	callCtx, cancel := r.callCtx(ctx)
	res := r.deps.Notifier.Broadcast(callCtx, r.providerID, r.requestID, donorIDs, title, body, metadata)
	cancel()

	now := time.Now()
	r.mu.Lock()
	for _, id := range res.Succeeded {
		if _, exists := r.matched[id]; !exists {
			r.matched[id] = now
		}
	}
	r.mu.Unlock()

	if res.FailureCount() == 0 {
		r.publish(ctx, fmt.Sprintf("Successfully contacted %d matched donors. Notifications sent.", res.SuccessCount()))
	} else {
		r.publish(ctx, fmt.Sprintf("Contacted %d donors; %d notifications failed and will be retried on a later pass.",
			res.SuccessCount(), res.FailureCount()))
	}
}

// checkInterventions nudges matched donors who have been silent past
// the configured window, at most once per donor.
func (r *Run) checkInterventions(ctx context.Context, responses map[string]model.ResponseRecord) {
	if r.cfg.InterventionAfter <= 0 || r.deps.Messenger == nil {
		return
	}

	now := time.Now()
	for _, donorID := range r.silentMatchedSince(responses, now) {
		msg := model.Message{
			Content:   "Just checking in - a nearby blood request still needs your help. Please open the app to respond.",
			Role:      "session",
			Timestamp: now.UTC(),
		}

		callCtx, cancel := r.callCtx(ctx)
		err := r.deps.Messenger.AppendMessage(callCtx, donorID, msg)
		cancel()
		if err != nil {
			log.Printf("coordinator: run %s: intervention for donor %s: %v", r.SessionID, donorID, err)
			continue
		}

		r.mu.Lock()
		r.intervened[donorID] = true
		r.mu.Unlock()

		// Feed entries are easy to miss; push a reminder too.
		callCtx, cancel = r.callCtx(ctx)
		res := r.deps.Notifier.Broadcast(callCtx, r.providerID, r.requestID, []string{donorID},
			"Reminder: blood donation needed",
			"A nearby blood request still needs your help. Please open the app to respond.",
			map[string]string{"provider_id": r.providerID, "request_id": r.requestID, "kind": "reminder"})
		cancel()
		if res.FailureCount() > 0 {
			log.Printf("coordinator: run %s: reminder notification for donor %s failed", r.SessionID, donorID)
		}
	}
}

// silentMatchedSince returns matched donors with no substantive
// response whose intervention window has elapsed and who have not been
// nudged yet.
func (r *Run) silentMatchedSince(responses map[string]model.ResponseRecord, now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []string
	for donorID, matchedAt := range r.matched {
		if rec, ok := responses[donorID]; ok && rec.Responded() {
			continue
		}
		if r.intervened[donorID] {
			continue
		}
		if now.Sub(matchedAt) < r.cfg.InterventionAfter {
			continue
		}
		due = append(due, donorID)
	}
	return due
}

// allMatchedResponded reports whether every matched donor has a
// substantive response (beyond the implicit contacted record written at
// notification time). Vacuously true with no matched donors, so a run
// whose notifications all failed still expands to retry.
func (r *Run) allMatchedResponded(responses map[string]model.ResponseRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for donorID := range r.matched {
		rec, ok := responses[donorID]
		if !ok || !rec.Responded() {
			return false
		}
	}
	return true
}

func (r *Run) excludeMatched(candidates []model.Candidate) []model.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	novel := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, matched := r.matched[c.UID]; !matched {
			novel = append(novel, c)
		}
	}
	return novel
}

func tallyResponses(responses map[string]model.ResponseRecord) (willing, responded int) {
	for _, rec := range responses {
		if rec.Status == model.ResponseWilling {
			willing++
		}
		if rec.Responded() {
			responded++
		}
	}
	return willing, responded
}

// Bounded-timeout wrappers around external calls.

func (r *Run) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.CallTimeout)
}

func (r *Run) lookupLocation(ctx context.Context) (model.Geo, bool) {
	callCtx, cancel := r.callCtx(ctx)
	defer cancel()
	return r.deps.Locations.GetProviderLocation(callCtx, r.providerID)
}

// search returns candidates in range that pass the donation interval
// check. Ineligible donors are never ranked or contacted.
func (r *Run) search(ctx context.Context, origin model.Geo) []model.Candidate {
	callCtx, cancel := r.callCtx(ctx)
	defer cancel()

	found := r.deps.Search.Search(callCtx, origin, r.RadiusKm(), r.request.BloodGroup, r.cfg.SearchLimit)
	eligible := make([]model.Candidate, 0, len(found))
	for _, c := range found {
		c = r.enrichCandidate(callCtx, c)
		if res := eligibility.Evaluate(c.LastDonationDate); !res.Eligible {
			log.Printf("coordinator: run %s: skipping donor %s: %s", r.SessionID, c.UID, res.Reason)
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

// enrichCandidate fills in ranking and eligibility inputs the search
// service omitted from the donor's stored profile. Candidates without a
// profile pass through unchanged.
func (r *Run) enrichCandidate(ctx context.Context, c model.Candidate) model.Candidate {
	if r.deps.Profiles == nil {
		return c
	}
	if c.LastDonationDate != "" && c.TotalDonations > 0 && c.BloodGroup != "" {
		return c
	}

	profile, ok := r.deps.Profiles.GetProfile(ctx, c.UID)
	if !ok {
		return c
	}
	if c.LastDonationDate == "" {
		c.LastDonationDate = profile.LastDonationDate
	}
	if c.TotalDonations == 0 {
		c.TotalDonations = profile.TotalDonations
	}
	if c.BloodGroup == "" {
		c.BloodGroup = profile.BloodType
	}
	return c
}

func (r *Run) getRequest(ctx context.Context) (model.Request, error) {
	callCtx, cancel := r.callCtx(ctx)
	defer cancel()
	return r.deps.Requests.Get(callCtx, r.providerID, r.requestID)
}

func (r *Run) readResponses(ctx context.Context) map[string]model.ResponseRecord {
	callCtx, cancel := r.callCtx(ctx)
	defer cancel()
	return r.deps.Responses.Read(callCtx, r.providerID, r.requestID)
}

func (r *Run) markFulfilled(ctx context.Context) error {
	callCtx, cancel := r.callCtx(ctx)
	defer cancel()
	return r.deps.Requests.Update(callCtx, r.providerID, r.requestID,
		map[string]interface{}{"status": model.RequestFulfilled})
}

func (r *Run) publish(ctx context.Context, text string) {
	callCtx, cancel := r.callCtx(ctx)
	defer cancel()
	r.deps.Status.Publish(callCtx, r.providerID, r.requestID, string(r.Phase()), text)
}

func (r *Run) announceCeiling(ctx context.Context) {
	r.mu.Lock()
	announced := r.ceilingAnnounced
	r.ceilingAnnounced = true
	r.mu.Unlock()

	if !announced {
		r.publish(ctx, fmt.Sprintf("Search radius ceiling of %.0fkm reached. Continuing to monitor current matches.", r.cfg.MaxRadiusKm))
	}
}

// Accessors guarded for the control API.

func (r *Run) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Run) RadiusKm() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.radiusKm
}

// MatchedCount returns the size of the matched set.
func (r *Run) MatchedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matched)
}

// ProviderID returns the provider parsed from the session id.
func (r *Run) ProviderID() string { return r.providerID }

// RequestID returns the request parsed from the session id.
func (r *Run) RequestID() string { return r.requestID }

// Snapshot captures the run's current state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		SessionID:       r.SessionID,
		ProviderID:      r.providerID,
		RequestID:       r.requestID,
		Phase:           r.phase,
		RadiusKm:        r.radiusKm,
		MatchedDonors:   len(r.matched),
		WillingDonors:   r.willing,
		RespondedDonors: r.responded,
		StartedAt:       r.startedAt,
	}
}

func (r *Run) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

func (r *Run) setRadius(km float64) {
	r.mu.Lock()
	r.radiusKm = km
	r.mu.Unlock()
}

func (r *Run) setCounts(willing, responded int) {
	r.mu.Lock()
	r.willing = willing
	r.responded = responded
	r.mu.Unlock()
}

func top(ids []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}
