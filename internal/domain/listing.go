package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Namespace identifies the inventory source a listing belongs to. Listing
// identifiers are prefixed "<namespace>-..."; un-prefixed identifiers belong
// to directly-operated inventory.
type Namespace string

const (
	// NamespaceDefault is directly-operated inventory, the only namespace
	// whose bookings settle on-chain.
	NamespaceDefault Namespace = "beenest"
	NamespacePartner Namespace = "partner"
)

// KnownNamespaces is the closed set an aggregator may register adapters for.
var KnownNamespaces = []Namespace{NamespaceDefault, NamespacePartner}

// NamespaceOf extracts the namespace prefix from a listing id, falling back
// to the default namespace when the prefix is absent or unknown.
func NamespaceOf(listingID string) Namespace {
	prefix, _, ok := strings.Cut(listingID, "-")
	if !ok {
		return NamespaceDefault
	}
	for _, ns := range KnownNamespaces {
		if Namespace(prefix) == ns {
			return ns
		}
	}
	return NamespaceDefault
}

// Listing is an inventory unit. Quantity is 1 for a whole home; greater for
// identical-room inventory, in which case the availability guard counts
// concurrent holds against Quantity instead of rejecting any overlap.
type Listing struct {
	ID                 string
	HostID             string
	PricePerNightUSD   decimal.Decimal
	SecurityDepositUSD decimal.Decimal
	MaxGuests          int
	Quantity           int
	CreatedAt          time.Time
}

// CalendarBlock is an externally synced hold (e.g. an imported iCal range)
// that blocks availability like an active booking does.
type CalendarBlock struct {
	ID        string
	ListingID string
	Range     DateRange
	Source    string
	CreatedAt time.Time
}

// Account is the read model of the external identity collaborator.
type Account struct {
	ID            string
	Email         string
	WalletAddress string
	Admin         bool
	Verified      bool
}
