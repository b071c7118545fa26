package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-booking-api/models"
	"tour-booking-api/storage"
)

func validContact(anonymous bool) models.ContactForm {
	form := models.ContactForm{
		Email:            "maria@example.com",
		FullName:         "Maria Gonzalez",
		Phone:            "987654321",
		PhoneCountryCode: "+56",
	}
	if anonymous {
		form.Password = "secret-pass-1"
		form.PasswordConfirm = "secret-pass-1"
	}
	return form
}

func strptr(s string) *string { return &s }

func TestCheckoutStore_CanSubmitNowDebounce(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")

	current := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	assert.True(t, s.CanSubmitNow())

	// Anything under the 3s window is rejected.
	current = current.Add(1 * time.Second)
	assert.False(t, s.CanSubmitNow())
	current = current.Add(1999 * time.Millisecond)
	assert.False(t, s.CanSubmitNow())

	// At or past the window the latch re-arms.
	current = current.Add(1 * time.Millisecond)
	assert.True(t, s.CanSubmitNow())

	// A rejected call must not reset the window.
	current = current.Add(2 * time.Second)
	assert.False(t, s.CanSubmitNow())
	current = current.Add(1 * time.Second)
	assert.True(t, s.CanSubmitNow())
}

func TestCheckoutStore_InitializeParticipantsPrefillsFirst(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	s.UpdateContact(ctx, validContact(true))

	participants := s.InitializeParticipants(ctx, 3)
	require.Len(t, participants, 3)
	assert.Equal(t, "Maria Gonzalez", participants[0].FullName)
	assert.Equal(t, "987654321", participants[0].Phone)
	assert.Equal(t, "+56", participants[0].PhoneCountryCode)
	assert.Empty(t, participants[1].FullName)
	assert.Empty(t, participants[2].FullName)
}

func TestCheckoutStore_InitializeParticipantsIdempotent(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	s.UpdateContact(ctx, validContact(true))
	s.InitializeParticipants(ctx, 3)

	err := s.UpdateParticipant(ctx, 1, ParticipantPatch{
		FullName:   strptr("Pedro Rojas"),
		DocumentID: strptr("12345678-9"),
	})
	require.NoError(t, err)

	// Same size again: nothing changes, edits survive.
	participants := s.InitializeParticipants(ctx, 3)
	require.Len(t, participants, 3)
	assert.Equal(t, "Pedro Rojas", participants[1].FullName)
	assert.Equal(t, "12345678-9", participants[1].DocumentID)
	assert.Equal(t, "Maria Gonzalez", participants[0].FullName)
}

func TestCheckoutStore_InitializeParticipantsResize(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	s.UpdateContact(ctx, validContact(true))
	s.InitializeParticipants(ctx, 3)
	require.NoError(t, s.UpdateParticipant(ctx, 2, ParticipantPatch{FullName: strptr("Ana Silva")}))

	// Shrinking truncates from the tail.
	participants := s.InitializeParticipants(ctx, 2)
	require.Len(t, participants, 2)
	assert.Equal(t, "Maria Gonzalez", participants[0].FullName)

	// Growing a non-empty array does not re-run the contact prefill.
	s.UpdateParticipant(ctx, 0, ParticipantPatch{FullName: strptr("Renamed")})
	participants = s.InitializeParticipants(ctx, 4)
	require.Len(t, participants, 4)
	assert.Equal(t, "Renamed", participants[0].FullName)
	assert.Empty(t, participants[3].FullName)
}

func TestCheckoutStore_CopyFromFirstParticipant(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	s.UpdateContact(ctx, validContact(true))
	s.InitializeParticipants(ctx, 3)
	require.NoError(t, s.UpdateParticipant(ctx, 0, ParticipantPatch{
		PickupAddress:       strptr("Hotel Plaza, Room 401"),
		SpecialRequirements: strptr("vegetarian"),
	}))
	require.NoError(t, s.UpdateParticipant(ctx, 2, ParticipantPatch{FullName: strptr("Ana Silva")}))

	s.CopyFromFirstParticipant(ctx, 2)

	participants := s.Participants(ctx)
	assert.Equal(t, "Hotel Plaza, Room 401", participants[2].PickupAddress)
	assert.Equal(t, "vegetarian", participants[2].SpecialRequirements)
	assert.Equal(t, "+56", participants[2].PhoneCountryCode)
	// Identity fields are untouched.
	assert.Equal(t, "Ana Silva", participants[2].FullName)

	// Index 0 and out-of-range indices are no-ops.
	s.CopyFromFirstParticipant(ctx, 0)
	s.CopyFromFirstParticipant(ctx, 9)
	assert.Equal(t, "Maria Gonzalez", s.Participants(ctx)[0].FullName)
}

func TestCheckoutStore_StepOneValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*models.ContactForm)
		authenticated bool
		want          bool
	}{
		{"valid anonymous", func(*models.ContactForm) {}, false, true},
		{"missing email", func(c *models.ContactForm) { c.Email = " " }, false, false},
		{"missing name", func(c *models.ContactForm) { c.FullName = "" }, false, false},
		{"short phone", func(c *models.ContactForm) { c.Phone = "12345" }, false, false},
		{"short password", func(c *models.ContactForm) { c.Password = "short"; c.PasswordConfirm = "short" }, false, false},
		{"password mismatch", func(c *models.ContactForm) { c.PasswordConfirm = "different-pass" }, false, false},
		{"authenticated skips password", func(c *models.ContactForm) { c.Password = ""; c.PasswordConfirm = "" }, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCheckoutStore(storage.NewMemory(), "sess-1")
			form := validContact(true)
			tt.mutate(&form)
			s.UpdateContact(context.Background(), form)
			assert.Equal(t, tt.want, s.StepOneValid(context.Background(), tt.authenticated))
		})
	}
}

func TestCheckoutStore_StepTwoValidation(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	// No participants at all: invalid.
	assert.False(t, s.StepTwoValid(ctx))

	s.UpdateContact(ctx, validContact(true))
	s.InitializeParticipants(ctx, 2)
	require.NoError(t, s.UpdateParticipant(ctx, 0, ParticipantPatch{
		DocumentID:  strptr("12345678-9"),
		Nationality: strptr("CL"),
	}))
	assert.False(t, s.StepTwoValid(ctx), "second participant still incomplete")

	require.NoError(t, s.UpdateParticipant(ctx, 1, ParticipantPatch{
		FullName:    strptr("Pedro Rojas"),
		DocumentID:  strptr("98765432-1"),
		Nationality: strptr("AR"),
	}))
	assert.True(t, s.StepTwoValid(ctx))
}

func TestCheckoutStore_NextStepGatesAndMaterializes(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()
	ident := anonIdent()

	// Invalid contact blocks step 1.
	_, err := s.NextStep(ctx, ident, 2)
	require.Error(t, err)
	assert.Equal(t, models.CheckoutStepContact, s.Step(ctx))

	s.UpdateContact(ctx, validContact(true))
	step, err := s.NextStep(ctx, ident, 2)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStepParticipants, step)
	require.Len(t, s.Participants(ctx), 2)

	// Incomplete participants block step 2.
	_, err = s.NextStep(ctx, ident, 2)
	require.Error(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.UpdateParticipant(ctx, i, ParticipantPatch{
			FullName:    strptr("Traveler"),
			DocumentID:  strptr("11111111-1"),
			Nationality: strptr("CL"),
		}))
	}
	step, err = s.NextStep(ctx, ident, 2)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStepPayment, step)

	// No step 4.
	_, err = s.NextStep(ctx, ident, 2)
	require.Error(t, err)
	assert.Equal(t, models.CheckoutStepPayment, s.Step(ctx))

	assert.Equal(t, models.CheckoutStepParticipants, s.PrevStep(ctx))
	assert.Equal(t, models.CheckoutStepContact, s.PrevStep(ctx))
	assert.Equal(t, models.CheckoutStepContact, s.PrevStep(ctx))
}

func TestCheckoutStore_PasswordsNeverPersisted(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	s := NewCheckoutStore(mem, "sess-1")
	s.UpdateContact(ctx, validContact(true))

	// In-memory state keeps the password for submit.
	assert.Equal(t, "secret-pass-1", s.Contact(ctx).Password)

	// A restore from storage must not.
	restored := NewCheckoutStore(mem, "sess-1")
	contact := restored.Contact(ctx)
	assert.Equal(t, "maria@example.com", contact.Email)
	assert.Empty(t, contact.Password)
	assert.Empty(t, contact.PasswordConfirm)
}

func TestCheckoutStore_RestoreAcrossStores(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	s := NewCheckoutStore(mem, "sess-1")
	s.UpdateContact(ctx, validContact(true))
	_, err := s.NextStep(ctx, anonIdent(), 2)
	require.NoError(t, err)
	require.NoError(t, s.UpdateParticipant(ctx, 1, ParticipantPatch{FullName: strptr("Pedro Rojas")}))

	restored := NewCheckoutStore(mem, "sess-1")
	assert.Equal(t, models.CheckoutStepParticipants, restored.Step(ctx))
	participants := restored.Participants(ctx)
	require.Len(t, participants, 2)
	assert.Equal(t, "Maria Gonzalez", participants[0].FullName)
	assert.Equal(t, "Pedro Rojas", participants[1].FullName)
}

func TestCheckoutStore_DraftStripsCredentials(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	s.UpdateContact(ctx, validContact(true))
	s.InitializeParticipants(ctx, 1)
	s.SelectPaymentMethod(ctx, models.PaymentMethodSelection{Provider: "mercadopago", Method: "pix"})

	draft := s.Draft(ctx)
	assert.Empty(t, draft.Contact.Password)
	assert.Empty(t, draft.Contact.PasswordConfirm)
	assert.Equal(t, "maria@example.com", draft.Contact.Email)
	assert.Len(t, draft.Participants, 1)
	assert.Equal(t, "mercadopago", draft.PaymentMethod.Provider)

	// Loading a draft into a fresh session reproduces the wizard.
	other := NewCheckoutStore(storage.NewMemory(), "sess-2")
	other.LoadDraft(ctx, draft)
	assert.Equal(t, draft.Step, other.Step(ctx))
	assert.Equal(t, "pix", other.PaymentMethod(ctx).Method)
}

func TestCheckoutStore_ResetWipesState(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	s := NewCheckoutStore(mem, "sess-1")
	s.UpdateContact(ctx, validContact(true))
	_, err := s.NextStep(ctx, anonIdent(), 2)
	require.NoError(t, err)

	s.Reset(ctx)
	assert.Equal(t, models.CheckoutStepContact, s.Step(ctx))
	assert.Empty(t, s.Contact(ctx).Email)
	assert.Empty(t, s.Participants(ctx))

	restored := NewCheckoutStore(mem, "sess-1")
	assert.Empty(t, restored.Contact(ctx).Email)
	assert.Equal(t, models.CheckoutStepContact, restored.Step(ctx))
}

func TestCheckoutStore_UpdateParticipantOutOfRange(t *testing.T) {
	s := NewCheckoutStore(storage.NewMemory(), "sess-1")
	ctx := context.Background()

	err := s.UpdateParticipant(ctx, 0, ParticipantPatch{FullName: strptr("x")})
	require.Error(t, err)

	s.UpdateContact(ctx, validContact(true))
	s.InitializeParticipants(ctx, 1)
	assert.Error(t, s.UpdateParticipant(ctx, -1, ParticipantPatch{}))
	assert.Error(t, s.UpdateParticipant(ctx, 1, ParticipantPatch{}))
}
