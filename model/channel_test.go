package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChannel(t *testing.T) {
	tests := []struct {
		name         string
		utmMedium    string
		referrerHost string
		want         string
	}{
		{"cpc medium", "cpc", "", ChannelPaidSearch},
		{"ppc medium", "ppc", "", ChannelPaidSearch},
		{"paid_search medium", "paid_search", "", ChannelPaidSearch},
		{"bare paid medium", "paid", "", ChannelPaidSearch},
		{"social medium", "social", "", ChannelPaidSocial},
		{"paidsocial medium", "paidsocial", "", ChannelPaidSocial},
		{"email medium", "email", "", ChannelEmail},
		{"klaviyo medium", "klaviyo", "", ChannelEmail},
		{"display medium", "display", "", ChannelDisplay},
		{"banner medium", "banner", "", ChannelDisplay},
		{"affiliate medium", "affiliate", "", ChannelAffiliate},
		{"google referrer", "", "www.google.com", ChannelOrganicSearch},
		{"bing referrer", "", "bing.com", ChannelOrganicSearch},
		{"facebook referrer", "", "m.facebook.com", ChannelOrganicSocial},
		{"twitter shortener referrer", "", "t.co", ChannelOrganicSocial},
		{"instagram referrer", "", "l.instagram.com", ChannelOrganicSocial},
		{"no signals", "", "", ChannelDirect},
		{"unknown referrer", "", "blog.example.com", ChannelReferral},

		// UTM medium outranks the referrer when both are present.
		{"paid medium beats organic referrer", "cpc", "www.google.com", ChannelPaidSearch},
		{"email medium beats social referrer", "email", "m.facebook.com", ChannelEmail},

		// Matching is case insensitive even for unnormalized input.
		{"uppercase medium", "CPC", "", ChannelPaidSearch},
		{"uppercase referrer", "", "WWW.GOOGLE.COM", ChannelOrganicSearch},

		// An unrecognized medium alone does not make a session Direct.
		{"unknown medium with referrer", "partnership", "deals.example.org", ChannelReferral},
		{"unknown medium no referrer", "partnership", "", ChannelDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyChannel(tt.utmMedium, tt.referrerHost))
		})
	}
}
