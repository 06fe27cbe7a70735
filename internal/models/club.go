package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "FREE"
	TierStarter    SubscriptionTier = "STARTER"
	TierPro        SubscriptionTier = "PRO"
	TierEnterprise SubscriptionTier = "ENTERPRISE"
)

var subscriptionTiers = []SubscriptionTier{TierFree, TierStarter, TierPro, TierEnterprise}

func ParseSubscriptionTier(s string) (SubscriptionTier, error) {
	t := SubscriptionTier(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range subscriptionTiers {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown subscription tier %q", s)
}

type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "TRIALING"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

type Club struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	Subdomain          string             `json:"subdomain" db:"subdomain"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	SubscriptionTier   SubscriptionTier   `json:"subscription_tier" db:"subscription_tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	PrimaryContactID   *uuid.UUID         `json:"primary_contact_id" db:"primary_contact_id"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// NormalizeSubdomain lower-cases s and checks it is a single DNS label.
func NormalizeSubdomain(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !subdomainPattern.MatchString(s) {
		return "", fmt.Errorf("subdomain must be a DNS label of lower-case letters, digits and hyphens")
	}
	return s, nil
}
