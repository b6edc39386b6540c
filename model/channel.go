package model

import (
	"strings"

	U "github.com/cyashish/puffy-repo/util"
)

const (
	ChannelPaidSearch    = "Paid Search"
	ChannelPaidSocial    = "Paid Social"
	ChannelEmail         = "Email"
	ChannelDisplay       = "Display"
	ChannelAffiliate     = "Affiliate"
	ChannelOrganicSearch = "Organic Search"
	ChannelOrganicSocial = "Organic Social"
	ChannelDirect        = "Direct"
	ChannelReferral      = "Referral"
)

// channelRule matches either on the exact UTM medium or on a substring of
// the referrer host. Rules are evaluated in order and the first match wins,
// so paid UTM signals always beat the referrer.
type channelRule struct {
	channel         string
	mediums         []string
	refHostContains []string
}

var channelRules = []channelRule{
	{channel: ChannelPaidSearch, mediums: []string{"cpc", "ppc", "paidsearch", "paid_search", "paid"}},
	{channel: ChannelPaidSocial, mediums: []string{"social", "social-paid", "paidsocial"}},
	{channel: ChannelEmail, mediums: []string{"email", "klaviyo"}},
	{channel: ChannelDisplay, mediums: []string{"display", "banner"}},
	{channel: ChannelAffiliate, mediums: []string{"affiliate"}},
	{channel: ChannelOrganicSearch, refHostContains: []string{"google", "bing"}},
	{channel: ChannelOrganicSocial, refHostContains: []string{"facebook", "t.co", "instagram"}},
}

// ClassifyChannel maps a UTM medium and referrer host to exactly one channel
// of the closed label set. Inputs arrive lowercased from the normalizer but
// are lowered again so the mapping stands alone.
func ClassifyChannel(utmMedium, referrerHost string) string {
	medium := strings.ToLower(utmMedium)
	host := strings.ToLower(referrerHost)

	for _, rule := range channelRules {
		if len(rule.mediums) > 0 && U.ContainsStringInArray(rule.mediums, medium) {
			return rule.channel
		}
		for _, fragment := range rule.refHostContains {
			if host != "" && strings.Contains(host, fragment) {
				return rule.channel
			}
		}
	}

	if host == "" {
		return ChannelDirect
	}
	return ChannelReferral
}
