package builder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/model"
)

type Options struct {
	// LookupTimeout bounds every dependent-field lookup.
	LookupTimeout time.Duration
	// FenceLookups discards lookup responses that were superseded by a
	// later request for the same cascade. Off by default: the last
	// response to arrive wins.
	FenceLookups bool
	Graph        *Graph
}

func (o Options) withDefaults() Options {
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 10 * time.Second
	}
	if o.Graph == nil {
		o.Graph = DefaultGraph()
	}
	return o
}

type EventType string

const (
	EventDraftUpdated      EventType = "draft.updated"
	EventBufferUpdated     EventType = "buffer.updated"
	EventLedgerUpdated     EventType = "ledger.updated"
	EventLookupFailed      EventType = "lookup.failed"
	EventSubmitted         EventType = "contract.submitted"
	EventScheduleGenerated EventType = "schedule.generated"
	EventTicketsSaved      EventType = "tickets.saved"
	EventClosed            EventType = "session.closed"
)

// Event tells the caller that session state changed outside of its own
// request, typically when an asynchronous lookup has been applied.
type Event struct {
	Type    EventType `json:"type"`
	Fields  []string  `json:"fields,omitempty"`
	Lookup  string    `json:"lookup,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	ID          string               `json:"id"`
	Draft       model.ContractDraft  `json:"draft"`
	Items       []model.PestLineItem `json:"items"`
	Buffer      EditBuffer           `json:"buffer"`
	Focused     string               `json:"focused,omitempty"`
	OpenOptions string               `json:"openOptions,omitempty"`
	Tickets     []model.Ticket       `json:"tickets,omitempty"`
}

// SubmitResult is the outcome of a successful save.
type SubmitResult struct {
	ContractID string                 `json:"contractId,omitempty"`
	Message    string                 `json:"message"`
	Payload    *model.ContractPayload `json:"-"`
}

// Session is one contract editing session. It has a single owner; the
// mutex only serializes the owner's calls against lookup completions.
type Session struct {
	id    string
	owner uuid.UUID
	gw    gateway.Gateway
	opts  Options
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	lastActive time.Time
	draft      model.ContractDraft
	ledger     *Ledger
	dropdowns  model.Dropdowns
	mounts     map[string]bool
	focused    string
	openList   string
	tickets    []model.Ticket
	seq        map[string]uint64

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
	// subsDone is set once Close has released every subscriber.
	subsDone bool
}

func NewSession(owner uuid.UUID, gw gateway.Gateway, dropdowns model.Dropdowns, opts Options, log zerolog.Logger) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	s := &Session{
		id:         id,
		owner:      owner,
		gw:         gw,
		opts:       opts,
		log:        log.With().Str("session_id", id).Logger(),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: time.Now(),
		ledger:     NewLedger(),
		dropdowns:  dropdowns,
		mounts:     make(map[string]bool),
		seq:        make(map[string]uint64),
		subs:       make(map[int]chan Event),
	}
	for _, control := range opts.Graph.Controls() {
		s.mounts[control.ID] = control.MountedByDefault()
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Owner() uuid.UUID {
	return s.owner
}

func (s *Session) Graph() *Graph {
	return s.opts.Graph
}

func (s *Session) Dropdowns() model.Dropdowns {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropdowns
}

// Hydrate loads a persisted contract for the edit flow.
func (s *Session) Hydrate(detail *gateway.ContractDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = detail.Draft.Clone()
	s.ledger.Seed(detail.Items)
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	tickets := make([]model.Ticket, len(s.tickets))
	copy(tickets, s.tickets)
	return Snapshot{
		ID:          s.id,
		Draft:       s.draft.Clone(),
		Items:       s.ledger.List(),
		Buffer:      s.ledger.Buffer(),
		Focused:     s.focused,
		OpenOptions: s.openList,
		Tickets:     tickets,
	}
}

// begin takes the lock for an owner call.
func (s *Session) begin() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActive = time.Now()
	return nil
}

// SetAttachment keeps the picked file as raw bytes. Encoding happens only
// when the payload is built.
func (s *Session) SetAttachment(fileName, contentType string, content []byte) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if len(content) == 0 {
		s.draft.Attachment = nil
		return nil
	}
	s.draft.Attachment = &model.Attachment{
		FileName:    fileName,
		ContentType: contentType,
		Content:     append([]byte(nil), content...),
		Size:        len(content),
	}
	return nil
}

// AddOrUpdateLine commits the edit buffer into the ledger.
func (s *Session) AddOrUpdateLine() ([]model.PestLineItem, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	items, err := s.ledger.AddOrUpdate()
	if err != nil {
		return nil, err
	}
	s.repairFocusLocked()
	return items, nil
}

func (s *Session) RemoveLine(key string) ([]model.PestLineItem, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	items, _, err := s.ledger.Remove(key)
	if err != nil {
		return nil, err
	}
	s.repairFocusLocked()
	return items, nil
}

func (s *Session) StartEditLine(key string) (EditBuffer, error) {
	if err := s.begin(); err != nil {
		return EditBuffer{}, err
	}
	defer s.mu.Unlock()
	return s.ledger.StartEdit(key)
}

func (s *Session) CancelEditLine() error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.ledger.CancelEdit()
	s.repairFocusLocked()
	return nil
}

// FocusNext moves focus to the control after current (the focused control
// when current is empty).
func (s *Session) FocusNext(current string) (Target, error) {
	if err := s.begin(); err != nil {
		return Target{}, err
	}
	defer s.mu.Unlock()
	if current == "" {
		current = s.focused
	}
	target := s.opts.Graph.Next(current, s.isMountedLocked)
	s.focusLocked(target)
	return target, nil
}

// HandleKey applies a key press on current and moves focus when it
// advances.
func (s *Session) HandleKey(current string, key KeyPress) (KeyResult, error) {
	if err := s.begin(); err != nil {
		return KeyResult{}, err
	}
	defer s.mu.Unlock()
	if current == "" {
		current = s.focused
	}
	result := s.opts.Graph.HandleKey(current, key, s.isMountedLocked)
	if result.Target != nil {
		s.focusLocked(*result.Target)
	}
	return result, nil
}

// Focus records a focus change made by the caller (e.g. a click).
func (s *Session) Focus(id string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.focused = id
	s.openList = ""
	return nil
}

// SetMounted updates the mount table reported by the caller.
func (s *Session) SetMounted(mounts map[string]bool) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for id, mounted := range mounts {
		s.mounts[id] = mounted
	}
	s.repairFocusLocked()
	return nil
}

func (s *Session) IsMounted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMountedLocked(id)
}

func (s *Session) isMountedLocked(id string) bool {
	if id == ControlLineCancel {
		return s.ledger.Buffer().Editing()
	}
	mounted, ok := s.mounts[id]
	return ok && mounted
}

func (s *Session) focusLocked(target Target) {
	s.focused = target.Control
	if target.OpenOptions {
		s.openList = target.Control
	} else {
		s.openList = ""
	}
}

// repairFocusLocked moves focus off a control that is no longer mounted
// onto the closest mounted control before it.
func (s *Session) repairFocusLocked() {
	if s.openList != "" && !s.isMountedLocked(s.openList) {
		s.openList = ""
	}
	if s.focused == "" || s.focused == s.opts.Graph.Terminal() || s.isMountedLocked(s.focused) {
		return
	}
	s.focused = s.opts.Graph.Nearest(s.focused, s.isMountedLocked)
	s.openList = ""
}

// Submit assembles the payload and persists it. Validation failures return
// before any network call; rejected saves keep the draft untouched.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	draft := s.draft.Clone()
	items := s.ledger.List()
	s.mu.Unlock()

	payload, err := BuildPayload(draft, items)
	if err != nil {
		return nil, err
	}

	res, err := s.gw.PersistContract(ctx, *payload)
	if err != nil {
		return nil, &PersistenceFailure{Operation: "persistContract", Err: err}
	}
	if !res.Success() {
		return nil, &PersistenceFailure{Operation: "persistContract", Message: res.Message}
	}

	contractID := res.ContractID()
	s.mu.Lock()
	if contractID != "" {
		s.draft.ContractID = contractID
	} else {
		contractID = s.draft.ContractID
	}
	s.mu.Unlock()

	message := res.Message
	if message == "" {
		message = "contract saved"
	}
	s.publish(Event{Type: EventSubmitted, Message: message})
	return &SubmitResult{ContractID: contractID, Message: message, Payload: payload}, nil
}

// GenerateSchedule asks the gateway for the visit tickets of a saved
// contract and keeps them on the session.
func (s *Session) GenerateSchedule(ctx context.Context) ([]model.Ticket, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	draft := s.draft.Clone()
	items := s.ledger.List()
	s.mu.Unlock()

	switch {
	case draft.ContractID == "":
		return nil, missing("contractId")
	case draft.StartDate == nil:
		return nil, missing("startDate")
	case draft.EndDate == nil:
		return nil, missing("endDate")
	}
	pestIDs := uniquePestIDs(items)
	if len(pestIDs) == 0 {
		return nil, missing("pestIds")
	}

	tickets, err := s.gw.GenerateSchedule(ctx, gateway.ScheduleRequest{
		ContractID: draft.ContractID,
		StartDate:  *draft.StartDate,
		EndDate:    *draft.EndDate,
		PestIDs:    pestIDs,
	})
	if err != nil {
		return nil, &PersistenceFailure{Operation: "generateSchedule", Err: err}
	}

	s.mu.Lock()
	s.tickets = append([]model.Ticket(nil), tickets...)
	s.mu.Unlock()

	s.publish(Event{Type: EventScheduleGenerated, Message: fmt.Sprintf("%d tickets generated", len(tickets))})
	return tickets, nil
}

// PersistTickets saves the generated tickets.
func (s *Session) PersistTickets(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	contractID := s.draft.ContractID
	tickets := append([]model.Ticket(nil), s.tickets...)
	s.mu.Unlock()

	if contractID == "" {
		return missing("contractId")
	}
	if len(tickets) == 0 {
		return missing("tickets")
	}

	res, err := s.gw.PersistTickets(ctx, gateway.TicketsRequest{ContractID: contractID, Tickets: tickets})
	if err != nil {
		return &PersistenceFailure{Operation: "persistTickets", Err: err}
	}
	if !res.Success() {
		return &PersistenceFailure{Operation: "persistTickets", Message: res.Message}
	}
	s.publish(Event{Type: EventTicketsSaved, Message: fmt.Sprintf("%d tickets saved", len(tickets))})
	return nil
}

func uniquePestIDs(items []model.PestLineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !item.Pest.IsResolved() {
			continue
		}
		if _, ok := seen[item.Pest.ID]; ok {
			continue
		}
		seen[item.Pest.ID] = struct{}{}
		ids = append(ids, item.Pest.ID)
	}
	return ids
}

// Subscribe registers for session events. Events are dropped for a
// subscriber whose buffer is full. A closed session hands back a closed
// channel.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.subsMu.Lock()
	if s.subsDone {
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.subsMu.Unlock()
		})
	}
}

func (s *Session) publish(event Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.log.Debug().Str("event", string(event.Type)).Msg("subscriber full, event dropped")
		}
	}
}

// Wait blocks until every in-flight lookup has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close discards the session: in-flight lookups are cancelled and nothing
// is persisted.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.publish(Event{Type: EventClosed})

	s.subsMu.Lock()
	s.subsDone = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()
}

// goLookup runs fn off the caller's path. Every lookup owns its error and
// panic boundary; failures leave the dependent field as it is.
func (s *Session) goLookup(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.LookupTimeout)
		defer cancel()

		var err error
		if recovered := panics.Try(func() { err = fn(ctx) }); recovered != nil {
			err = recovered.AsError()
		}
		if err == nil {
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		failure := &LookupFailure{Lookup: name, Err: err}
		s.log.Warn().Err(failure).Str("lookup", name).Msg("dependent lookup failed")
		s.publish(Event{Type: EventLookupFailed, Lookup: name, Message: failure.Error()})
	}()
}

// apply runs fn under the session lock and publishes the fields it
// reports as changed.
func (s *Session) apply(kind EventType, fn func() []string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fields := fn()
	s.mu.Unlock()
	if len(fields) > 0 {
		s.publish(Event{Type: kind, Fields: fields})
	}
}
