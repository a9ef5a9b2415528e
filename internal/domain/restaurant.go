package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Scope identifies the table a device is ordering from.
type Scope struct {
	RestaurantID int    `json:"restaurantId"`
	BranchNumber int    `json:"branchNumber"`
	TableNumber  string `json:"tableNumber"`
}

// Key renders the scope as a storage key suffix.
func (s Scope) Key() string {
	return strconv.Itoa(s.RestaurantID) + ":" + strconv.Itoa(s.BranchNumber) + ":" + s.TableNumber
}

type Restaurant struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	LogoURL      string       `json:"logo_url,omitempty"`
	BannerURL    string       `json:"banner_url,omitempty"`
	Address      string       `json:"address,omitempty"`
	OpeningHours OpeningHours `json:"opening_hours,omitempty"`
}

// OpeningHours is a weekly schedule keyed by lowercase English weekday name.
type OpeningHours map[string]DayHours

type DayHours struct {
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
}

// ParseClock parses an "HH:MM" (or "HH:MM:SS") string into minutes after midnight.
func ParseClock(v string) (int, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid clock value %q", v)
}

// RestaurantSnapshot is the combined restaurant + menu payload.
type RestaurantSnapshot struct {
	Restaurant Restaurant    `json:"restaurant"`
	Menu       []MenuSection `json:"menu"`
}

// FindItem looks up a menu item by id across all sections.
func (s RestaurantSnapshot) FindItem(id int) (MenuItem, bool) {
	for _, section := range s.Menu {
		for _, item := range section.Items {
			if item.ID == id {
				return item, true
			}
		}
	}
	return MenuItem{}, false
}
