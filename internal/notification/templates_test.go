package notification

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

func TestKey(t *testing.T) {
	require.Equal(t, "accepted", Key(models.AdmissionStateAccepted))
	require.Equal(t, "registr_submitted", Key(models.AdmissionStateRegistrationSubmitted))
	require.Equal(t, "accepted_no_registration_required", Key(models.AdmissionStateAcceptedNoRegistrationRequired))
	require.Equal(t, "some_state", Key("Some State"))
}

func TestLoadCoversEveryState(t *testing.T) {
	tmpl, err := Load()
	require.NoError(t, err)

	for _, state := range models.AdmissionStates {
		for _, audience := range Audiences(state) {
			require.NoError(t, tmpl.check(RefFor(audience, Key(state))), "state %s audience %s", state, audience)
		}
	}
	require.Empty(t, Audiences(models.AdmissionStateDraft))
	require.Empty(t, Audiences(models.AdmissionStateCancelled))
	require.Len(t, Audiences(models.AdmissionStateAccepted), 2)
}

func TestRenderParticipantAccepted(t *testing.T) {
	tmpl := MustLoad()

	out, err := tmpl.Render(RefFor(AudienceParticipant, "accepted"), Data{
		FirstName:        "Jane",
		LastName:         "Doe",
		Formation:        "MDEMO2FC - Demo",
		FormationAcronym: "MDEMO2FC",
		State:            "Accepted",
		Reason:           "-",
		Condition:        "Bring <your> diploma",
		Mails:            "a@example.org or b@example.org",
	})
	require.NoError(t, err)
	require.Equal(t, "Your admission file is now : Accepted", out.Subject)
	require.Contains(t, out.Text, "Condition of acceptance : Bring <your> diploma")
	require.Contains(t, out.Text, "a@example.org or b@example.org")
	require.Contains(t, out.HTML, "Bring &lt;your&gt; diploma")
}

func TestRenderAdminSubmittedFlagsOmittedAttachments(t *testing.T) {
	tmpl := MustLoad()

	out, err := tmpl.Render(RefFor(AudienceAdmin, "submitted"), Data{
		FirstName:          "Jane",
		LastName:           "Doe",
		Formation:          "MDEMO2FC - Demo",
		FormationAcronym:   "MDEMO2FC",
		State:              "Submitted",
		FormationLink:      "https://iufc.example.org/admissions/adm-1",
		AttachmentsOmitted: true,
	})
	require.NoError(t, err)
	require.Equal(t, "New admission request for MDEMO2FC", out.Subject)
	require.Contains(t, out.Text, "https://iufc.example.org/admissions/adm-1")
	require.Contains(t, out.Text, "exceed the attachment size limit")
	require.Contains(t, out.HTML, `href="https://iufc.example.org/admissions/adm-1"`)
}
