package geo

import (
	"net/http"
	"net/url"
	"strconv"
)

// viewerHeaders maps the edge-injected geolocation request headers to the
// JSON field names the echo endpoint exposes.
var viewerHeaders = map[string]string{
	"cloudfront-viewer-country":             "country_code",
	"cloudfront-viewer-city":                "city",
	"cloudfront-viewer-country-name":        "country_name",
	"cloudfront-viewer-country-region":      "region_code",
	"cloudfront-viewer-country-region-name": "region_name",
	"cloudfront-viewer-latitude":            "latitude",
	"cloudfront-viewer-longitude":           "longitude",
	"cloudfront-viewer-metro-code":          "metro_code",
	"cloudfront-viewer-postal-code":         "postal_code",
	"cloudfront-viewer-time-zone":           "timezone",
}

// Viewer is the geolocation of the requesting client, as reported by the
// CDN edge.
type Viewer struct {
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	CountryName string  `json:"country_name"`
	RegionCode  string  `json:"region_code"`
	RegionName  string  `json:"region_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MetroCode   string  `json:"metro_code"`
	PostalCode  string  `json:"postal_code"`
	Timezone    string  `json:"timezone"`
}

// PointNemo is the placeholder viewer used when no geolocation headers
// are present: recognizably valid data that is obviously inaccurate.
var PointNemo = Viewer{
	CountryCode: "N/A",
	City:        "Point Nemo",
	CountryName: "N/A",
	RegionCode:  "N/A",
	RegionName:  "Pacific Ocean",
	Latitude:    -48.8767,
	Longitude:   -123.3933,
	MetroCode:   "N/A",
	PostalCode:  "N/A",
	Timezone:    "Etc/GMT-9",
}

// ViewerFromHeaders extracts the viewer geolocation from the request
// headers. The boolean is false when no geolocation header was present,
// in which case the PointNemo placeholder is returned.
func ViewerFromHeaders(h http.Header) (Viewer, bool) {
	fields := map[string]string{}
	for name := range viewerHeaders {
		if v := h.Get(name); v != "" {
			if unescaped, err := url.QueryUnescape(v); err == nil {
				v = unescaped
			}
			fields[viewerHeaders[name]] = v
		}
	}
	if len(fields) == 0 {
		return PointNemo, false
	}

	v := Viewer{
		CountryCode: fields["country_code"],
		City:        fields["city"],
		CountryName: fields["country_name"],
		RegionCode:  fields["region_code"],
		RegionName:  fields["region_name"],
		MetroCode:   fields["metro_code"],
		PostalCode:  fields["postal_code"],
		Timezone:    fields["timezone"],
	}
	if lat, err := strconv.ParseFloat(fields["latitude"], 64); err == nil {
		v.Latitude = lat
	}
	if lon, err := strconv.ParseFloat(fields["longitude"], 64); err == nil {
		v.Longitude = lon
	}
	return v, true
}
