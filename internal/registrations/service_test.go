package registrations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/models"
	"github.com/akvora/backend/internal/realtime"
)

type fakeStore struct {
	regs         map[uuid.UUID]*models.Registration
	participants map[string]string // eventID/userExternalID -> status
	setStatusOps int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		regs:         make(map[uuid.UUID]*models.Registration),
		participants: make(map[string]string),
	}
}

func pkey(eventID uuid.UUID, ext string) string { return eventID.String() + "/" + ext }

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	if reg, ok := f.regs[id]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetByUserAndEvent(_ context.Context, userID, eventID uuid.UUID) (*models.Registration, error) {
	for _, reg := range f.regs {
		if reg.UserID == userID && reg.EventID == eventID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) referenceTaken(ref string, exclude uuid.UUID) bool {
	for id, reg := range f.regs {
		if id != exclude && reg.PaymentReference == ref {
			return true
		}
	}
	return false
}

func (f *fakeStore) ReferenceInUse(_ context.Context, ref string, exclude uuid.UUID) (bool, error) {
	return f.referenceTaken(ref, exclude), nil
}

func (f *fakeStore) Create(_ context.Context, reg *models.Registration, seed participantSeed) error {
	for _, existing := range f.regs {
		if existing.UserID == reg.UserID && existing.EventID == reg.EventID {
			return ErrAlreadyRegistered
		}
	}
	if f.referenceTaken(reg.PaymentReference, uuid.Nil) {
		return ErrReferenceUsed
	}
	reg.ID = uuid.New()
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = reg.CreatedAt
	cp := *reg
	f.regs[reg.ID] = &cp
	if reg.Status == models.StatusApproved {
		f.participants[pkey(reg.EventID, seed.UserExternalID)] = models.StatusApproved
	}
	return nil
}

func (f *fakeStore) Resubmit(_ context.Context, reg *models.Registration, seed participantSeed) error {
	stored, ok := f.regs[reg.ID]
	if !ok || stored.Status != models.StatusRejected {
		return ErrAlreadyRegistered
	}
	if f.referenceTaken(reg.PaymentReference, reg.ID) {
		return ErrReferenceUsed
	}
	stored.NameOnCertificate = reg.NameOnCertificate
	stored.PaymentReference = reg.PaymentReference
	stored.Status = reg.Status
	stored.RejectionReason = ""
	stored.RejectedAt = nil
	stored.AdminMessage = ""
	stored.UpdatedAt = time.Now()
	key := pkey(stored.EventID, seed.UserExternalID)
	if stored.Status == models.StatusApproved {
		f.participants[key] = models.StatusApproved
	} else if _, ok := f.participants[key]; ok {
		f.participants[key] = stored.Status
	}
	*reg = *stored
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, status, reason, adminMessage string, seed participantSeed) (*models.Registration, error) {
	f.setStatusOps++
	stored, ok := f.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	stored.Status = status
	if status == models.StatusRejected {
		now := time.Now()
		stored.RejectionReason = reason
		stored.RejectedAt = &now
	} else {
		stored.RejectionReason = ""
		stored.RejectedAt = nil
	}
	stored.AdminMessage = adminMessage
	stored.UpdatedAt = time.Now()
	key := pkey(stored.EventID, seed.UserExternalID)
	if status == models.StatusApproved {
		f.participants[key] = models.StatusApproved
	} else if _, ok := f.participants[key]; ok {
		f.participants[key] = status
	}
	cp := *stored
	return &cp, nil
}

type fakeEvents struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, errors.New("event not found")
}

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type fakeNotes struct {
	created []models.Notification
}

func (f *fakeNotes) Create(_ context.Context, n *models.Notification) error {
	f.created = append(f.created, *n)
	return nil
}

type recordingNotifier struct {
	emits []struct {
		Channel string
		Event   string
		Payload interface{}
	}
}

func (r *recordingNotifier) Emit(channel, event string, payload interface{}) {
	r.emits = append(r.emits, struct {
		Channel string
		Event   string
		Payload interface{}
	}{channel, event, payload})
}

type fixture struct {
	store    *fakeStore
	events   *fakeEvents
	users    *fakeUsers
	notes    *fakeNotes
	notifier *recordingNotifier
	service  *Service
	user     *models.User
	paid     *models.Event
	free     *models.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	soon := time.Now().Add(48 * time.Hour)
	end := soon.Add(2 * time.Hour)
	paid := &models.Event{
		ID: uuid.New(), Title: "Go Workshop", Type: models.EventWorkshop,
		Date: &soon, EndDate: &end, Price: 499, MeetingLink: "https://meet.example.com/go",
	}
	free := &models.Event{
		ID: uuid.New(), Title: "Intro Webinar", Type: models.EventWebinar,
		Date: &soon, EndDate: &end, Price: 0, MeetingLink: "https://meet.example.com/intro",
	}
	user := &models.User{
		ID: uuid.New(), ExternalID: "ext_123", Email: "dev@example.com",
		FirstName: "Asha", LastName: "Rao",
	}

	f := &fixture{
		store:    newFakeStore(),
		events:   &fakeEvents{events: map[uuid.UUID]*models.Event{paid.ID: paid, free.ID: free}},
		users:    &fakeUsers{users: map[uuid.UUID]*models.User{user.ID: user}},
		notes:    &fakeNotes{},
		notifier: &recordingNotifier{},
		user:     user,
		paid:     paid,
		free:     free,
	}
	f.service = NewService(f.store, f.events, f.users, f.notes, f.notifier, nil, zap.NewNop())
	return f
}

func TestSubmitPaidWorkshop(t *testing.T) {
	f := newFixture(t)
	reg, err := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID:           f.paid.ID,
		NameOnCertificate: "Asha Rao",
		PaymentReference:  " 1234 5678 90 ",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reg.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", reg.Status)
	}
	if reg.PaymentReference != "1234567890" {
		t.Errorf("reference = %q, want whitespace stripped", reg.PaymentReference)
	}
	if _, ok := f.store.participants[pkey(f.paid.ID, f.user.ExternalID)]; ok {
		t.Error("pending registration must not create a participant row")
	}
	var gotNew, gotUpdated bool
	for _, e := range f.notifier.emits {
		if e.Channel == realtime.ChannelAdmin && e.Event == realtime.EventRegistrationNew {
			gotNew = true
		}
		if e.Channel == realtime.UserChannel(f.user.ExternalID) && e.Event == realtime.EventRegistrationUpdated {
			gotUpdated = true
		}
	}
	if !gotNew || !gotUpdated {
		t.Errorf("expected admin new + user updated pushes, got %+v", f.notifier.emits)
	}
}

func TestSubmitInvalidReference(t *testing.T) {
	f := newFixture(t)
	for _, ref := range []string{"", "123456789", "1234567890123456789", "12345abcde", "REF1234567890"} {
		_, err := f.service.Submit(context.Background(), f.user, SubmitInput{
			EventID:           f.paid.ID,
			NameOnCertificate: "Asha Rao",
			PaymentReference:  ref,
		})
		if !errors.Is(err, ErrInvalidReference) {
			t.Errorf("Submit(ref=%q) err = %v, want ErrInvalidReference", ref, err)
		}
	}
}

func TestSubmitFreeEventAutoApproves(t *testing.T) {
	f := newFixture(t)
	reg, err := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID:           f.free.ID,
		NameOnCertificate: "Asha Rao",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reg.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", reg.Status)
	}
	if !strings.HasPrefix(reg.PaymentReference, "FREE-") {
		t.Errorf("reference = %q, want generated FREE- reference", reg.PaymentReference)
	}
	if got := f.store.participants[pkey(f.free.ID, f.user.ExternalID)]; got != models.StatusApproved {
		t.Errorf("participant status = %q, want approved", got)
	}
}

func TestSubmitDuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	in := SubmitInput{EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890"}
	if _, err := f.service.Submit(context.Background(), f.user, in); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	in.PaymentReference = "9876543210"
	_, err := f.service.Submit(context.Background(), f.user, in)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Submit err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestSubmitReferenceReuseConflicts(t *testing.T) {
	f := newFixture(t)
	other := &models.User{ID: uuid.New(), ExternalID: "ext_other", Email: "other@example.com", FirstName: "Dev"}
	f.users.users[other.ID] = other

	in := SubmitInput{EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890"}
	if _, err := f.service.Submit(context.Background(), f.user, in); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	in.NameOnCertificate = "Dev"
	_, err := f.service.Submit(context.Background(), other, in)
	if !errors.Is(err, ErrReferenceUsed) {
		t.Errorf("reused reference err = %v, want ErrReferenceUsed", err)
	}

	// the pre-check also guards the resubmission path
	in.PaymentReference = "5556667778"
	reg, err := f.service.Submit(context.Background(), other, in)
	if err != nil {
		t.Fatalf("Submit with fresh reference: %v", err)
	}
	if _, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusRejected, "reference not found", ""); err != nil {
		t.Fatalf("SetStatus(rejected): %v", err)
	}
	in.PaymentReference = "1234567890" // still held by the first user
	_, err = f.service.Submit(context.Background(), other, in)
	if !errors.Is(err, ErrReferenceUsed) {
		t.Errorf("resubmit with taken reference err = %v, want ErrReferenceUsed", err)
	}
}

func TestRejectThenResubmit(t *testing.T) {
	f := newFixture(t)
	reg, err := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rejected, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusRejected, "reference not found", "")
	if err != nil {
		t.Fatalf("SetStatus(rejected): %v", err)
	}
	if rejected.RejectionReason != "reference not found" || rejected.RejectedAt == nil {
		t.Errorf("rejection details missing: %+v", rejected)
	}

	resubmitted, err := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID: f.paid.ID, NameOnCertificate: "Asha R Rao", PaymentReference: "2223334445",
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.ID != reg.ID {
		t.Errorf("resubmit created a new row: got %s, want %s", resubmitted.ID, reg.ID)
	}
	if resubmitted.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", resubmitted.Status)
	}
	if resubmitted.RejectionReason != "" || resubmitted.RejectedAt != nil {
		t.Errorf("rejection details not cleared: %+v", resubmitted)
	}
	if resubmitted.PaymentReference != "2223334445" {
		t.Errorf("reference = %q, want replacement", resubmitted.PaymentReference)
	}
	if len(f.store.regs) != 1 {
		t.Errorf("store holds %d rows, want 1", len(f.store.regs))
	}
}

func TestSetStatusApproveAddsParticipant(t *testing.T) {
	f := newFixture(t)
	reg, _ := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890",
	})

	approved, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusApproved, "", "welcome")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if approved.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if got := f.store.participants[pkey(f.paid.ID, f.user.ExternalID)]; got != models.StatusApproved {
		t.Errorf("participant status = %q, want approved", got)
	}

	// moving away from approved mutates the roster row in place;
	// rows are only removed by explicit unregister
	if _, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusRejected, "chargeback", ""); err != nil {
		t.Fatalf("SetStatus(rejected): %v", err)
	}
	if got, ok := f.store.participants[pkey(f.paid.ID, f.user.ExternalID)]; !ok {
		t.Error("rejection removed the roster row; it must be kept and mutated in place")
	} else if got != models.StatusRejected {
		t.Errorf("roster row status after rejection = %q, want rejected", got)
	}

	// resetting to pending also keeps the row
	if _, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusPending, "", ""); err != nil {
		t.Fatalf("SetStatus(pending): %v", err)
	}
	if got, ok := f.store.participants[pkey(f.paid.ID, f.user.ExternalID)]; !ok || got != models.StatusPending {
		t.Errorf("roster row after reset = %q, ok=%v; want kept with status pending", got, ok)
	}
}

func TestSetStatusIdempotentSelfTransition(t *testing.T) {
	f := newFixture(t)
	reg, _ := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890",
	})
	if _, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusApproved, "", ""); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	opsBefore := f.store.setStatusOps
	emitsBefore := len(f.notifier.emits)

	again, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusApproved, "", "")
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if again.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", again.Status)
	}
	if f.store.setStatusOps != opsBefore {
		t.Error("self-transition must not write to the store")
	}
	if len(f.notifier.emits) != emitsBefore {
		t.Error("self-transition must not push realtime events")
	}
}

func TestSetStatusRejectedRequiresReason(t *testing.T) {
	f := newFixture(t)
	reg, _ := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890",
	})
	_, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusRejected, "   ", "")
	if !errors.Is(err, ErrReasonRequired) {
		t.Errorf("err = %v, want ErrReasonRequired", err)
	}
	_, err = f.service.SetStatus(context.Background(), reg.ID, "cancelled", "", "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestStripMeetingLinks(t *testing.T) {
	link := "https://meet.example.com/secret"
	mk := func(status string) models.RegistrationWithEvent {
		var item models.RegistrationWithEvent
		item.Status = status
		item.Event.MeetingLink = link
		return item
	}
	list := []models.RegistrationWithEvent{mk(models.StatusPending), mk(models.StatusApproved), mk(models.StatusRejected)}
	StripMeetingLinks(list)

	if list[0].Event.MeetingLink != "" {
		t.Error("pending registration leaked meeting link")
	}
	if list[1].Event.MeetingLink != link {
		t.Error("approved registration lost meeting link")
	}
	if list[2].Event.MeetingLink != "" {
		t.Error("rejected registration leaked meeting link")
	}
}

func TestApprovalNotificationPayload(t *testing.T) {
	f := newFixture(t)
	reg, _ := f.service.Submit(context.Background(), f.user, SubmitInput{
		EventID: f.paid.ID, NameOnCertificate: "Asha Rao", PaymentReference: "1234567890",
	})
	if _, err := f.service.SetStatus(context.Background(), reg.ID, models.StatusApproved, "", ""); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	var payload *realtime.RegistrationUpdatedPayload
	for _, e := range f.notifier.emits {
		if e.Channel == realtime.UserChannel(f.user.ExternalID) && e.Event == realtime.EventRegistrationUpdated {
			if p, ok := e.Payload.(realtime.RegistrationUpdatedPayload); ok && p.Status == models.StatusApproved {
				payload = &p
			}
		}
	}
	if payload == nil {
		t.Fatal("no approval push to user channel")
	}
	if payload.MeetingLink != f.paid.MeetingLink {
		t.Errorf("approval push meeting link = %q, want %q", payload.MeetingLink, f.paid.MeetingLink)
	}
}
