package model

// Prayer is one row of the rendered prayer table.
type Prayer struct {
	Name   string `json:"name"`   // “Fajr”, “Dhuhr”, …
	Start  string `json:"start"`  // “5:12 AM”, “--” or “Unavailable”
	Jamaah string `json:"jamaah"`
	Active bool   `json:"active"`
}

// AthanPageData is the schedule panel of the widget.
type AthanPageData struct {
	District   string   `json:"district"`
	Date       string   `json:"date"` // DD/MM/YYYY of the entry shown
	RamadanDay string   `json:"ramadan_day"`
	Sehri      string   `json:"sehri"`
	Iftar      string   `json:"iftar"`
	Prayers    []Prayer `json:"prayers"`
}
