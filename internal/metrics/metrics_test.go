package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandler(t *testing.T) {
	m := New()
	m.StateSaves.Inc()
	m.SessionsActive.Inc()
	m.InviteRedemptions.WithLabelValues(OutcomeOK).Inc()
	m.InviteRedemptions.WithLabelValues(OutcomeExpired).Inc()
	m.InviteRedemptions.WithLabelValues(OutcomeExpired).Inc()

	body := scrape(t, m)
	assert.Contains(t, body, "hearth_state_saves_total 1")
	assert.Contains(t, body, "hearth_sessions_active 1")
	assert.Contains(t, body, `hearth_invite_redemptions_total{outcome="ok"} 1`)
	assert.Contains(t, body, `hearth_invite_redemptions_total{outcome="expired"} 2`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.InvitesCreated.Inc()

	assert.Contains(t, scrape(t, a), "hearth_invites_created_total 1")
	assert.Contains(t, scrape(t, b), "hearth_invites_created_total 0")
}
