package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/availability"
	"github.com/ForeFoldAi/eye-care-api/internal/domain/tenant"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
)

// ---------------------------------------------------------------------------
// in-memory store with transaction emulation
// ---------------------------------------------------------------------------

// memStore backs both the appointment repository and the slot store so that
// a single snapshot can emulate an atomic cross-table transaction.
type memStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	slots map[availability.SlotKey]*availability.Slot
	appts map[uuid.UUID]Appointment

	failClaims bool
}

func newMemStore() *memStore {
	return &memStore{
		slots: map[availability.SlotKey]*availability.Slot{},
		appts: map[uuid.UUID]Appointment{},
	}
}

func (m *memStore) addSlot(key availability.SlotKey, tokenCount int) {
	m.slots[key] = &availability.Slot{
		ID:         uuid.New(),
		StartTime:  key.StartTime,
		EndTime:    key.EndTime,
		TokenCount: tokenCount,
	}
}

// SlotStore

func (m *memStore) FindSlot(_ context.Context, doctorID uuid.UUID, dayOfWeek int, at string) (*availability.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, slot := range m.slots {
		if key.DoctorID == doctorID && key.DayOfWeek == dayOfWeek && slot.Contains(at) {
			cp := *slot
			cp.BookedTokens = append([]int(nil), slot.BookedTokens...)
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("no slot for doctor %s on day %d at %s", doctorID, dayOfWeek, at)
}

func (m *memStore) ClaimToken(_ context.Context, key availability.SlotKey, token int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failClaims {
		return false, nil
	}
	slot, ok := m.slots[key]
	if !ok {
		return false, nil
	}
	if slot.IsBooked(token) {
		return false, nil
	}
	slot.BookedTokens = append(slot.BookedTokens, token)
	return true, nil
}

func (m *memStore) ReleaseToken(_ context.Context, key availability.SlotKey, token int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[key]
	if !ok {
		return nil
	}
	kept := slot.BookedTokens[:0]
	for _, t := range slot.BookedTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	slot.BookedTokens = kept
	return nil
}

// Repository

func (m *memStore) Create(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	stored := *appt
	// Timestamptz keeps the instant, not the request's zone offset.
	stored.StartsAt = stored.StartsAt.UTC()
	m.appts[appt.ID] = stored
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	return &appt, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appts[id]
	if !ok {
		return apperr.NotFound("appointment %s not found", id)
	}
	appt.Status = status
	appt.UpdatedAt = time.Now()
	m.appts[id] = appt
	return nil
}

func (m *memStore) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for id := range m.appts {
		appt := m.appts[id]
		if v, ok := params["doctor_id"]; ok && v != appt.DoctorID.String() {
			continue
		}
		if v, ok := params["branch_id"]; ok && v != appt.BranchID.String() {
			continue
		}
		if v, ok := params["status"]; ok && v != string(appt.Status) {
			continue
		}
		out = append(out, &appt)
	}
	return out, len(out), nil
}

type memSnapshot struct {
	slots map[availability.SlotKey]*availability.Slot
	appts map[uuid.UUID]Appointment
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		slots: make(map[availability.SlotKey]*availability.Slot, len(m.slots)),
		appts: make(map[uuid.UUID]Appointment, len(m.appts)),
	}
	for k, s := range m.slots {
		cp := *s
		cp.BookedTokens = append([]int(nil), s.BookedTokens...)
		snap.slots[k] = &cp
	}
	for k, a := range m.appts {
		snap.appts[k] = a
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = snap.slots
	m.appts = snap.appts
}

// memTx serializes transactions and rolls the store back when the function
// fails, matching the all-or-nothing behavior of the real runner.
type memTx struct {
	store *memStore
}

func (t *memTx) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

var (
	testHospital = uuid.New()
	testBranch   = uuid.New()
)

// bookingTime is a Monday, inside the seeded 09:00-12:00 slot.
var bookingTime = time.Date(2026, time.September, 7, 10, 30, 0, 0, time.UTC)

func receptionistCtx() tenant.Context {
	return tenant.Context{
		UserID:     uuid.New(),
		Role:       tenant.RoleReceptionist,
		HospitalID: &testHospital,
		BranchID:   &testBranch,
	}
}

func newTestService(store *memStore) *Service {
	return NewService(store, store, &memTx{store: store}, zerolog.Nop())
}

func seedSlot(store *memStore, doctorID uuid.UUID, tokenCount int) availability.SlotKey {
	key := availability.SlotKey{
		DoctorID:  doctorID,
		DayOfWeek: int(bookingTime.Weekday()),
		StartTime: "09:00",
		EndTime:   "12:00",
	}
	store.addSlot(key, tokenCount)
	return key
}

func bookReq(doctorID uuid.UUID, token int) BookingRequest {
	return BookingRequest{
		PatientID:   uuid.New(),
		DoctorID:    doctorID,
		StartsAt:    bookingTime,
		Type:        "consultation",
		TokenNumber: token,
	}
}

// ---------------------------------------------------------------------------
// booking
// ---------------------------------------------------------------------------

func TestBook_Success(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	key := seedSlot(store, doctorID, 10)
	svc := newTestService(store)
	tc := receptionistCtx()

	appt, err := svc.Book(context.Background(), tc, bookReq(doctorID, 5))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Fatalf("expected status scheduled, got %s", appt.Status)
	}
	if appt.HospitalID != testHospital || appt.BranchID != testBranch {
		t.Fatal("appointment must be pinned to the caller's scope")
	}
	if appt.SlotStart != "09:00" || appt.SlotEnd != "12:00" {
		t.Fatal("appointment must record its originating slot bounds")
	}
	if appt.BookedBy != tc.UserID {
		t.Fatal("booked_by must record the caller")
	}
	if !store.slots[key].IsBooked(5) {
		t.Fatal("token 5 must be claimed in the slot")
	}
}

func TestBook_OnlyReceptionist(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	roles := []tenant.Role{tenant.RoleMasterAdmin, tenant.RoleAdmin, tenant.RoleSubAdmin, tenant.RoleDoctor}
	for _, role := range roles {
		tc := tenant.Context{UserID: uuid.New(), Role: role, HospitalID: &testHospital, BranchID: &testBranch}
		_, err := svc.Book(context.Background(), tc, bookReq(doctorID, 1))
		if apperr.CodeOf(err) != apperr.CodePermissionDenied {
			t.Fatalf("role %s: expected permission denied, got %v", role, err)
		}
	}
}

func TestBook_DoctorUnavailable(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	req := bookReq(doctorID, 1)
	req.StartsAt = bookingTime.Add(4 * time.Hour) // 14:30, outside the slot
	_, err := svc.Book(context.Background(), receptionistCtx(), req)
	if apperr.CodeOf(err) != apperr.CodeDoctorUnavailable {
		t.Fatalf("expected doctor unavailable, got %v", err)
	}

	// Sunday has no schedule at all.
	req = bookReq(doctorID, 1)
	req.StartsAt = bookingTime.AddDate(0, 0, -1)
	_, err = svc.Book(context.Background(), receptionistCtx(), req)
	if apperr.CodeOf(err) != apperr.CodeDoctorUnavailable {
		t.Fatalf("expected doctor unavailable on sunday, got %v", err)
	}
}

func TestBook_TokenBounds(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	for _, token := range []int{0, -3, 11} {
		_, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, token))
		if apperr.CodeOf(err) != apperr.CodeInvalidToken {
			t.Fatalf("token %d: expected invalid token, got %v", token, err)
		}
	}

	// Both bounds are bookable.
	for _, token := range []int{1, 10} {
		if _, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, token)); err != nil {
			t.Fatalf("token %d: %v", token, err)
		}
	}
}

func TestBook_TokenAlreadyBooked(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	if _, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, 7)); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, 7))
	if apperr.CodeOf(err) != apperr.CodeTokenAlreadyBooked {
		t.Fatalf("expected token already booked, got %v", err)
	}
}

func TestBook_LostClaimRollsBack(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	// The pre-check passes but the conditional claim loses.
	store.failClaims = true
	_, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, 3))
	if apperr.CodeOf(err) != apperr.CodeTokenAlreadyBooked {
		t.Fatalf("expected token already booked, got %v", err)
	}
	if len(store.appts) != 0 {
		t.Fatal("losing the claim must roll back the appointment insert")
	}
}

func TestBook_ConcurrentSameToken(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	key := seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	const callers = 25
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, 4))
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperr.CodeOf(err) == apperr.CodeTokenAlreadyBooked:
		default:
			t.Fatalf("caller %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if len(store.appts) != 1 {
		t.Fatalf("expected exactly one persisted appointment, got %d", len(store.appts))
	}
	booked := store.slots[key].BookedTokens
	if len(booked) != 1 || booked[0] != 4 {
		t.Fatalf("expected booked tokens [4], got %v", booked)
	}
}

// ---------------------------------------------------------------------------
// lifecycle
// ---------------------------------------------------------------------------

func mustBook(t *testing.T, svc *Service, doctorID uuid.UUID, token int) *Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, token))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return appt
}

func TestTransition_Matrix(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestTransition_InvalidRejected(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	appt := mustBook(t, svc, doctorID, 1)
	_, err := svc.Transition(context.Background(), receptionistCtx(), appt.ID, StatusCompleted)
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("scheduled -> completed must be rejected, got %v", err)
	}
}

func TestTransition_CancelReleasesToken(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	key := seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	appt := mustBook(t, svc, doctorID, 6)

	out, err := svc.Transition(context.Background(), receptionistCtx(), appt.ID, StatusCancelled)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", out.Status)
	}
	if store.slots[key].IsBooked(6) {
		t.Fatal("cancelling must release the token")
	}

	// The released token is immediately bookable again.
	if _, err := svc.Book(context.Background(), receptionistCtx(), bookReq(doctorID, 6)); err != nil {
		t.Fatalf("rebooking released token: %v", err)
	}
}

func TestTransition_CancelAcrossZoneBoundary(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	// Monday 00:30 in UTC+5:30 is Sunday 19:00 UTC, so the persisted
	// timestamp falls on a different weekday than the request's.
	key := availability.SlotKey{DoctorID: doctorID, DayOfWeek: 1, StartTime: "00:00", EndTime: "01:00"}
	store.addSlot(key, 10)
	svc := newTestService(store)
	tc := receptionistCtx()

	ist := time.FixedZone("UTC+5:30", 5*3600+30*60)
	req := BookingRequest{
		PatientID:   uuid.New(),
		DoctorID:    doctorID,
		StartsAt:    time.Date(2026, time.September, 7, 0, 30, 0, 0, ist),
		Type:        "consultation",
		TokenNumber: 1,
	}

	appt, err := svc.Book(context.Background(), tc, req)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if appt.DayOfWeek != 1 {
		t.Fatalf("appointment must record the request-time weekday, got %d", appt.DayOfWeek)
	}

	if _, err := svc.Transition(context.Background(), tc, appt.ID, StatusCancelled); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if store.slots[key].IsBooked(1) {
		t.Fatal("cancelling must release the token from the slot it was claimed in")
	}

	// The released token is bookable again under the same slot.
	if _, err := svc.Book(context.Background(), tc, req); err != nil {
		t.Fatalf("rebooking released token: %v", err)
	}
}

func TestTransition_CompletedKeepsToken(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	key := seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	appt := mustBook(t, svc, doctorID, 2)
	if _, err := svc.Transition(context.Background(), receptionistCtx(), appt.ID, StatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Transition(context.Background(), receptionistCtx(), appt.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !store.slots[key].IsBooked(2) {
		t.Fatal("completing must not release the token")
	}
}

func TestTransition_ScopeEnforced(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	appt := mustBook(t, svc, doctorID, 8)

	foreignBranch := uuid.New()
	tc := tenant.Context{UserID: uuid.New(), Role: tenant.RoleReceptionist, HospitalID: &testHospital, BranchID: &foreignBranch}
	_, err := svc.Transition(context.Background(), tc, appt.ID, StatusConfirmed)
	if apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("foreign branch must be denied, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// reads
// ---------------------------------------------------------------------------

func TestGet_DoctorOwnOnly(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	seedSlot(store, doctorID, 10)
	svc := newTestService(store)

	appt := mustBook(t, svc, doctorID, 1)

	own := tenant.Context{UserID: doctorID, Role: tenant.RoleDoctor, HospitalID: &testHospital, BranchID: &testBranch}
	if _, err := svc.Get(context.Background(), own, appt.ID); err != nil {
		t.Fatalf("doctor reading own appointment: %v", err)
	}

	other := tenant.Context{UserID: uuid.New(), Role: tenant.RoleDoctor, HospitalID: &testHospital, BranchID: &testBranch}
	_, err := svc.Get(context.Background(), other, appt.ID)
	if apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("another doctor must be denied, got %v", err)
	}
}

func TestList_DoctorPinnedToSelf(t *testing.T) {
	store := newMemStore()
	doctorA := uuid.New()
	doctorB := uuid.New()
	seedSlot(store, doctorA, 10)
	seedSlot(store, doctorB, 10)
	svc := newTestService(store)

	mustBook(t, svc, doctorA, 1)
	mustBook(t, svc, doctorB, 1)

	tc := tenant.Context{UserID: doctorA, Role: tenant.RoleDoctor, HospitalID: &testHospital, BranchID: &testBranch}
	items, total, err := svc.List(context.Background(), tc, map[string]string{"doctor_id": doctorB.String()}, 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].DoctorID != doctorA {
		t.Fatalf("doctor list must be pinned to self, got %d items", len(items))
	}
}
