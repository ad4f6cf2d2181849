package store

import (
	"testing"
	"time"

	"github.com/covehq/cove/internal/models"
)

func seedBusiness(t *testing.T, s Store) *models.Business {
	t.Helper()
	b := &models.Business{
		Name:             "Smile Dental",
		TwilioFromNumber: "+61400000001",
		Industry:         "dental",
		Active:           true,
	}
	if err := s.CreateBusiness(b); err != nil {
		t.Fatalf("CreateBusiness() error: %v", err)
	}
	return b
}

func seedLead(t *testing.T, s Store, businessID string) *models.Lead {
	t.Helper()
	l := &models.Lead{
		BusinessID:  businessID,
		Phone:       "+61412345678",
		Name:        "Sarah Jones",
		Status:      models.LeadStatusActive,
		CurrentStep: 1,
	}
	if err := s.CreateLead(l); err != nil {
		t.Fatalf("CreateLead() error: %v", err)
	}
	return l
}

func TestInMemoryStore_BusinessRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)

	if b.ID == "" {
		t.Fatal("expected generated business ID")
	}
	got, err := s.GetBusiness(b.ID)
	if err != nil {
		t.Fatalf("GetBusiness() error: %v", err)
	}
	if got == nil || got.Name != "Smile Dental" {
		t.Fatalf("unexpected business %+v", got)
	}

	byNumber, err := s.GetBusinessByNumber("+61400000001")
	if err != nil {
		t.Fatalf("GetBusinessByNumber() error: %v", err)
	}
	if byNumber == nil || byNumber.ID != b.ID {
		t.Error("expected lookup by provisioned number")
	}

	got.Name = "Renamed"
	if err := s.UpdateBusiness(got); err != nil {
		t.Fatalf("UpdateBusiness() error: %v", err)
	}
	updated, _ := s.GetBusiness(b.ID)
	if updated.Name != "Renamed" {
		t.Error("expected update persisted")
	}

	all, err := s.ListBusinesses()
	if err != nil || len(all) != 1 {
		t.Errorf("ListBusinesses() = %d businesses, err %v", len(all), err)
	}
}

func TestInMemoryStore_UnknownLookupsReturnNilNil(t *testing.T) {
	s := NewInMemoryStore()

	if b, err := s.GetBusiness("nope"); b != nil || err != nil {
		t.Error("expected (nil, nil) for unknown business")
	}
	if b, err := s.GetBusinessByNumber("+61499999999"); b != nil || err != nil {
		t.Error("expected (nil, nil) for unknown number")
	}
	if l, err := s.GetLead("nope"); l != nil || err != nil {
		t.Error("expected (nil, nil) for unknown lead")
	}
	if l, err := s.ActiveLead("biz", "+61412345678"); l != nil || err != nil {
		t.Error("expected (nil, nil) when no active lead exists")
	}
}

func TestInMemoryStore_UpdateUnknownBusinessFails(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.UpdateBusiness(&models.Business{ID: "ghost"}); err == nil {
		t.Error("expected error updating unknown business")
	}
}

func TestInMemoryStore_ActiveLead(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)
	l := seedLead(t, s, b.ID)

	got, err := s.ActiveLead(b.ID, l.Phone)
	if err != nil {
		t.Fatalf("ActiveLead() error: %v", err)
	}
	if got == nil || got.ID != l.ID {
		t.Fatal("expected the seeded active lead")
	}

	// Terminal leads are invisible to the active lookup.
	status := models.LeadStatusCompleted
	if _, err := s.PatchLead(l.ID, &models.LeadPatch{Status: &status}); err != nil {
		t.Fatalf("PatchLead() error: %v", err)
	}
	got, err = s.ActiveLead(b.ID, l.Phone)
	if err != nil || got != nil {
		t.Error("expected no active lead after completion")
	}
}

func TestInMemoryStore_ActiveLeadPrefersNewest(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)

	older := &models.Lead{
		BusinessID: b.ID, Phone: "+61412345678",
		Status: models.LeadStatusActive, CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.Lead{
		BusinessID: b.ID, Phone: "+61412345678",
		Status: models.LeadStatusActive,
	}
	if err := s.CreateLead(older); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateLead(newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.ActiveLead(b.ID, "+61412345678")
	if err != nil {
		t.Fatalf("ActiveLead() error: %v", err)
	}
	if got.ID != newer.ID {
		t.Error("expected the newest active lead")
	}
}

func TestInMemoryStore_RecentActiveLeadByPhone(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)

	stale := &models.Lead{
		BusinessID: b.ID, Phone: "+61412345678",
		Status: models.LeadStatusActive, CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := s.CreateLead(stale); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentActiveLeadByPhone(b.ID, "+61412345678", 30*time.Minute)
	if err != nil {
		t.Fatalf("RecentActiveLeadByPhone() error: %v", err)
	}
	if got != nil {
		t.Error("expected lead outside the window to be ignored")
	}

	fresh := seedLead(t, s, b.ID)
	got, err = s.RecentActiveLeadByPhone(b.ID, "+61412345678", 30*time.Minute)
	if err != nil {
		t.Fatalf("RecentActiveLeadByPhone() error: %v", err)
	}
	if got == nil || got.ID != fresh.ID {
		t.Error("expected the fresh lead inside the window")
	}
}

func TestInMemoryStore_PatchLead(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)
	l := seedLead(t, s, b.ID)

	step := 2
	patched, err := s.PatchLead(l.ID, &models.LeadPatch{
		CurrentStep: &step,
		Answers:     map[string]string{"patient_type_code": "A"},
	})
	if err != nil {
		t.Fatalf("PatchLead() error: %v", err)
	}
	if patched.CurrentStep != 2 || patched.Answers["patient_type_code"] != "A" {
		t.Errorf("patch not applied: %+v", patched)
	}

	if _, err := s.PatchLead("ghost", &models.LeadPatch{}); err == nil {
		t.Error("expected error patching unknown lead")
	}
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)
	l := seedLead(t, s, b.ID)

	got, _ := s.GetLead(l.ID)
	got.Answers["tampered"] = "yes"
	got.Name = "Mallory"

	again, _ := s.GetLead(l.ID)
	if again.Answers["tampered"] != "" || again.Name != "Sarah Jones" {
		t.Error("expected stored lead isolated from returned copies")
	}
}

func TestInMemoryStore_ActiveLeads(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)
	seedLead(t, s, b.ID)

	stopped := &models.Lead{BusinessID: b.ID, Phone: "+61400000002", Status: models.LeadStatusStopped}
	if err := s.CreateLead(stopped); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveLeads()
	if err != nil {
		t.Fatalf("ActiveLeads() error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected one active lead, got %d", len(active))
	}
}

func TestInMemoryStore_RecentLeads(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)

	for i := 0; i < 3; i++ {
		l := &models.Lead{
			BusinessID: b.ID,
			Phone:      "+6141234567" + string(rune('0'+i)),
			Status:     models.LeadStatusActive,
			CreatedAt:  time.Now().Add(time.Duration(-i) * time.Hour),
		}
		if err := s.CreateLead(l); err != nil {
			t.Fatal(err)
		}
	}

	leads, err := s.RecentLeads(b.ID, 2)
	if err != nil {
		t.Fatalf("RecentLeads() error: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("expected limit applied, got %d leads", len(leads))
	}
	if !leads[0].CreatedAt.After(leads[1].CreatedAt) {
		t.Error("expected newest-first ordering")
	}
}

func TestInMemoryStore_Messages(t *testing.T) {
	s := NewInMemoryStore()
	b := seedBusiness(t, s)
	l := seedLead(t, s, b.ID)

	msgs := []*models.Message{
		{LeadID: l.ID, Direction: models.DirectionInbound, Body: "hi"},
		{LeadID: l.ID, Direction: models.DirectionOutbound, Body: "question one"},
	}
	for _, m := range msgs {
		if err := s.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage() error: %v", err)
		}
		if m.ID == "" {
			t.Error("expected generated message ID")
		}
	}

	got, err := s.MessagesByLead(l.ID)
	if err != nil {
		t.Fatalf("MessagesByLead() error: %v", err)
	}
	if len(got) != 2 || got[0].Body != "hi" || got[1].Body != "question one" {
		t.Errorf("unexpected transcript %+v", got)
	}

	empty, err := s.MessagesByLead("ghost")
	if err != nil || len(empty) != 0 {
		t.Error("expected empty transcript for unknown lead")
	}
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/cove", DSNTypePostgres},
		{"postgresql://user:pw@localhost/cove", DSNTypePostgres},
		{"/var/lib/cove/cove.db", DSNTypeSQLite},
		{"file:cove.db?cache=shared", DSNTypeSQLite},
	}
	for _, tt := range tests {
		if got := DetectDSNType(tt.dsn); got != tt.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
