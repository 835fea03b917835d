package domain

import (
	"testing"

	"techo_backend/internal/authz"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestCanTransitionTable(t *testing.T) {
	p := Policy{AllowReopen: true}
	allowed := map[[2]Status]bool{
		{StatusAssigned, StatusInProgress}: true,
		{StatusInProgress, StatusResolved}: true,
		{StatusResolved, StatusClosed}:     true,
		{StatusResolved, StatusInProgress}: true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]Status{from, to}]
			if got := p.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOpenToAssignedIsNotAStatusUpdate(t *testing.T) {
	err := Policy{AllowReopen: true}.ValidateTransition(StatusOpen, StatusAssigned)
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestSameStatusIsInvalid(t *testing.T) {
	p := Policy{AllowReopen: true}
	for _, s := range AllStatuses {
		if p.CanTransition(s, s) {
			t.Errorf("self transition allowed for %s", s)
		}
	}
}

func TestClosedIsTerminal(t *testing.T) {
	p := Policy{AllowReopen: true}
	for _, to := range AllStatuses {
		if p.CanTransition(StatusClosed, to) {
			t.Errorf("transition out of cerrada allowed to %s", to)
		}
	}
	if !StatusClosed.IsTerminal() {
		t.Fatal("cerrada must be terminal")
	}
}

func TestReopenCanBeDisabled(t *testing.T) {
	if (Policy{AllowReopen: false}).CanTransition(StatusResolved, StatusInProgress) {
		t.Fatal("reopen must be rejected when disabled")
	}
}

func TestInvalidTransitionCarriesStates(t *testing.T) {
	err := Policy{}.ValidateTransition(StatusOpen, StatusResolved)
	e, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	details, _ := e.Details.(map[string]string)
	if details["from"] != "abierta" || details["to"] != "resuelta" {
		t.Fatalf("unexpected details %v", e.Details)
	}
}

func TestAuthorizeTransition(t *testing.T) {
	reporter := uuid.New()
	tech := uuid.New()
	otherTech := uuid.New()
	inc := Participants{ReporterID: reporter, TechnicianID: &tech}

	tests := []struct {
		name  string
		from  Status
		actor uuid.UUID
		role  authz.Role
		ok    bool
	}{
		{"assigned technician starts work", StatusAssigned, tech, authz.RoleTechnician, true},
		{"other technician cannot start", StatusAssigned, otherTech, authz.RoleTechnician, false},
		{"reporter cannot resolve", StatusInProgress, reporter, authz.RoleBeneficiary, false},
		{"supervisor cannot resolve", StatusInProgress, uuid.New(), authz.RoleSupervisor, false},
		{"admin resolves", StatusInProgress, uuid.New(), authz.RoleAdmin, true},
		{"reporter closes", StatusResolved, reporter, authz.RoleBeneficiary, true},
		{"technician cannot close", StatusResolved, tech, authz.RoleTechnician, false},
		{"admin closes", StatusResolved, uuid.New(), authz.RoleAdmin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeTransition(tt.from, inc, tt.actor, tt.role)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !apperr.Is(err, apperr.KindForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestCanComment(t *testing.T) {
	reporter := uuid.New()
	tech := uuid.New()
	inc := Participants{ReporterID: reporter, TechnicianID: &tech}

	if !CanComment(inc, reporter, authz.RoleBeneficiary) {
		t.Error("reporter must be able to comment")
	}
	if !CanComment(inc, tech, authz.RoleTechnician) {
		t.Error("assigned technician must be able to comment")
	}
	if CanComment(inc, uuid.New(), authz.RoleTechnician) {
		t.Error("unrelated technician must not comment")
	}
	if CanComment(inc, uuid.New(), authz.RoleBeneficiary) {
		t.Error("unrelated beneficiary must not comment")
	}
	if !CanComment(inc, uuid.New(), authz.RoleSupervisor) {
		t.Error("supervisor must be able to comment")
	}
}

func TestParsePriorityDefaultsToMedium(t *testing.T) {
	p, ok := ParsePriority("")
	if !ok || p != PriorityMedium {
		t.Fatalf("ParsePriority(\"\") = %v, %v", p, ok)
	}
	if _, ok := ParsePriority("urgente"); ok {
		t.Fatal("unknown priority accepted")
	}
	if PriorityHigh.Rank() <= PriorityLow.Rank() {
		t.Fatal("alta must outrank baja")
	}
}
