package alerting

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultCooldown suppresses duplicate alerts of the same name and source
	DefaultCooldown = 5 * time.Minute

	// DefaultMaxAlerts caps the number of alerts held in memory
	DefaultMaxAlerts = 1000
)

// StoreConfig tunes an alert store
type StoreConfig struct {
	MaxAlerts       int
	DefaultCooldown time.Duration

	// Now overrides the clock, used by tests
	Now func() time.Time
}

// Store holds alerts in memory and enforces the lifecycle state machine.
// All reads return copies; no caller ever sees the store's own records.
type Store struct {
	mu      sync.RWMutex
	alerts  map[string]*Alert
	seq     map[string]uint64
	byName  map[string][]string
	nextSeq uint64
	closed  bool

	maxAlerts int
	cooldown  time.Duration
	now       func() time.Time
	logger    *logrus.Logger
}

// NewStore creates an empty alert store
func NewStore(config StoreConfig, logger *logrus.Logger) *Store {
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = DefaultMaxAlerts
	}
	if config.DefaultCooldown <= 0 {
		config.DefaultCooldown = DefaultCooldown
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Store{
		alerts:    make(map[string]*Alert),
		seq:       make(map[string]uint64),
		byName:    make(map[string][]string),
		maxAlerts: config.MaxAlerts,
		cooldown:  config.DefaultCooldown,
		now:       config.Now,
		logger:    logger,
	}
}

// Reasons a create request is dropped
const (
	DropCooldown   = "cooldown"
	DropSuppressed = "suppressed"
)

// Create raises a new alert unless an equivalent one is cooling down or suppressed.
// When the request is dropped the existing alert is returned with created=false.
func (s *Store) Create(req CreateRequest) (alert *Alert, created bool, err error) {
	alert, dropReason, err := s.CreateOrDrop(req)
	return alert, err == nil && dropReason == "", err
}

// CreateOrDrop is Create reporting why a request was dropped: DropCooldown,
// DropSuppressed, or empty when a new alert was stored.
func (s *Store) CreateOrDrop(req CreateRequest) (alert *Alert, dropReason string, err error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, "", ErrStoreClosed
	}

	now := s.now()
	if existing, reason := s.duplicateLocked(req, now); existing != nil {
		s.logger.WithFields(logrus.Fields{
			"alert_name": req.Name,
			"source":     req.Source,
			"existing":   existing.ID,
			"status":     existing.Status,
			"reason":     reason,
		}).Debug("Alert request dropped")
		return existing.clone(), reason, nil
	}

	if len(s.alerts) >= s.maxAlerts {
		s.evictLocked()
	}

	a := &Alert{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		Source:        req.Source,
		Category:      req.Category,
		Severity:      req.Severity,
		Status:        StatusActive,
		Timestamp:     now,
		Tags:          append([]string(nil), req.Tags...),
		Metadata:      make(map[string]interface{}, len(req.Metadata)),
		CorrelationID: req.CorrelationID,
	}
	if req.CurrentValue != nil {
		v := *req.CurrentValue
		a.CurrentValue = &v
	}
	if req.Threshold != nil {
		t := *req.Threshold
		a.Threshold = &t
	}
	for k, v := range req.Metadata {
		a.Metadata[k] = v
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	s.nextSeq++
	s.alerts[a.ID] = a
	s.seq[a.ID] = s.nextSeq
	s.byName[a.Name] = append(s.byName[a.Name], a.ID)

	s.logger.WithFields(logrus.Fields{
		"alert_id":   a.ID,
		"alert_name": a.Name,
		"severity":   a.Severity,
		"category":   a.Category,
		"source":     a.Source,
	}).Info("Alert created")

	return a.clone(), "", nil
}

// duplicateLocked finds the alert that makes req a duplicate, if any.
// A name+source match that is suppressed into the future always wins; otherwise
// the most recent match blocks while it is unresolved and inside the cooldown.
func (s *Store) duplicateLocked(req CreateRequest, now time.Time) (*Alert, string) {
	cooldown := s.cooldown
	if req.Cooldown > 0 {
		cooldown = req.Cooldown
	}

	var latest *Alert
	for _, id := range s.byName[req.Name] {
		a := s.alerts[id]
		if a == nil || (req.Source != "" && a.Source != req.Source) {
			continue
		}
		if a.Status == StatusSuppressed && a.SuppressedUntil != nil && a.SuppressedUntil.After(now) {
			return a, DropSuppressed
		}
		if latest == nil || s.newerLocked(a, latest) {
			latest = a
		}
	}

	if latest != nil && latest.Status != StatusResolved && now.Sub(latest.Timestamp) < cooldown {
		return latest, DropCooldown
	}
	return nil, ""
}

func (s *Store) newerLocked(a, b *Alert) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return s.seq[a.ID] > s.seq[b.ID]
}

// evictLocked drops the oldest resolved alert. If nothing is resolved the
// store grows past the cap rather than losing an open alert.
func (s *Store) evictLocked() {
	var oldest *Alert
	for _, a := range s.alerts {
		if a.Status != StatusResolved {
			continue
		}
		if oldest == nil || !s.newerLocked(a, oldest) {
			oldest = a
		}
	}
	if oldest == nil {
		s.logger.WithField("max_alerts", s.maxAlerts).Warn("Alert store is full and holds no resolved alerts")
		return
	}
	s.removeLocked(oldest.ID)
}

func (s *Store) removeLocked(id string) {
	a, ok := s.alerts[id]
	if !ok {
		return
	}
	delete(s.alerts, id)
	delete(s.seq, id)

	ids := s.byName[a.Name]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byName, a.Name)
	} else {
		s.byName[a.Name] = ids
	}
}

// Acknowledge records that an operator has seen the alert.
// It returns nil when the alert is missing, suppressed or already resolved.
func (s *Store) Acknowledge(id, by, notes string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	a, ok := s.alerts[id]
	if !ok || (a.Status != StatusActive && a.Status != StatusAcknowledged) {
		return nil, nil
	}

	if by == "" {
		by = "system"
	}
	now := s.now()
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &now
	if notes != "" {
		a.Notes = notes
	}
	if a.Status == StatusActive {
		a.Status = StatusAcknowledged
	}

	s.logger.WithFields(logrus.Fields{
		"alert_id":        id,
		"acknowledged_by": by,
	}).Info("Alert acknowledged")

	return a.clone(), nil
}

// Resolve closes an alert. Resolved is terminal; resolving twice returns nil.
func (s *Store) Resolve(id, by, notes string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	a, ok := s.alerts[id]
	if !ok || a.Status == StatusResolved {
		return nil, nil
	}

	if by == "" {
		by = "system"
	}
	now := s.now()
	if now.Before(a.Timestamp) {
		now = a.Timestamp
	}
	a.Status = StatusResolved
	a.ResolvedBy = by
	a.ResolvedAt = &now
	a.SuppressedUntil = nil
	if notes != "" {
		a.Notes = notes
	}

	s.logger.WithFields(logrus.Fields{
		"alert_id":    id,
		"resolved_by": by,
	}).Info("Alert resolved")

	return a.clone(), nil
}

// Suppress silences an alert for the given number of minutes
func (s *Store) Suppress(id string, minutes int, reason string) (*Alert, error) {
	if minutes <= 0 {
		return nil, ErrInvalidSuppression
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	a, ok := s.alerts[id]
	if !ok || a.Status == StatusResolved {
		return nil, nil
	}

	until := s.now().Add(time.Duration(minutes) * time.Minute)
	a.Status = StatusSuppressed
	a.SuppressedUntil = &until
	if reason != "" {
		a.Notes = reason
		a.Metadata["suppression_reason"] = reason
	}

	s.logger.WithFields(logrus.Fields{
		"alert_id":         id,
		"suppressed_until": until,
	}).Info("Alert suppressed")

	return a.clone(), nil
}

// SweepExpiredSuppressions reactivates suppressed alerts whose window has passed
func (s *Store) SweepExpiredSuppressions(now time.Time) []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var reactivated []*Alert
	for _, a := range s.alerts {
		if a.Status != StatusSuppressed || a.SuppressedUntil == nil || a.SuppressedUntil.After(now) {
			continue
		}
		a.Status = StatusActive
		a.SuppressedUntil = nil
		reactivated = append(reactivated, a.clone())
	}

	if len(reactivated) > 0 {
		s.logger.WithField("count", len(reactivated)).Info("Suppressed alerts reactivated")
	}
	return reactivated
}

// PruneResolved removes resolved alerts that were resolved before cutoff
func (s *Store) PruneResolved(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	removed := 0
	for id, a := range s.alerts {
		if a.Status == StatusResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			s.removeLocked(id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Pruned resolved alerts")
	}
	return removed
}

// Get returns a copy of the alert or nil
func (s *Store) Get(id string) *Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil
	}
	return a.clone()
}

// Active returns open alerts, newest first
func (s *Store) Active() []*Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Alert, 0)
	for _, a := range s.sortedLocked() {
		if a.IsOpen() {
			result = append(result, a.clone())
		}
	}
	return result
}

// List applies filter and pagination, newest first. A zero limit returns
// everything after offset.
func (s *Store) List(filter AlertFilter) AlertPage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*Alert, 0)
	for _, a := range s.sortedLocked() {
		if filter.matches(a) {
			matched = append(matched, a)
		}
	}

	total := len(matched)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < total {
		end = offset + filter.Limit
	}

	page := make([]*Alert, 0, end-offset)
	for _, a := range matched[offset:end] {
		page = append(page, a.clone())
	}

	return AlertPage{
		Alerts:  page,
		Total:   total,
		HasMore: filter.Limit > 0 && offset+filter.Limit < total,
	}
}

// Len returns the number of alerts held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Close rejects further writes. Writes in flight finish first since Close
// waits for the write lock.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// sortedLocked returns the store's records ordered newest first with
// insertion order breaking timestamp ties
func (s *Store) sortedLocked() []*Alert {
	all := make([]*Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		return s.newerLocked(all[i], all[j])
	})
	return all
}
