package model

import (
	"fmt"
	"strings"
)

// Category is the kind of alert a scanner sends to a tag's owner.
type Category string

const (
	CategoryGeneral   Category = "GENERAL"
	CategoryParking   Category = "PARKING"
	CategoryEmergency Category = "EMERGENCY"
)

// Categories lists the alert categories in the order the scan page offers them.
var Categories = []Category{CategoryGeneral, CategoryParking, CategoryEmergency}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryGeneral, CategoryParking, CategoryEmergency:
		return c, nil
	}
	return "", fmt.Errorf("unknown alert category %q", s)
}

// LinkedViaPush is stored in push_token when a device is linked but the
// collaborator did not hand back a subscription id.
const LinkedViaPush = "linked_via_onesignal"
