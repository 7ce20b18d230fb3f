package heatmap

// DefaultTileURL is used when Settings.TileURL is empty.
const DefaultTileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

const defaultAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`

// Settings controls the map tiles and the leaflet.heat layer.
type Settings struct {
	TileURL    string
	MinOpacity float64
	Radius     int
	Blur       int
	MaxZoom    int
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MinOpacity: 0.3,
		Radius:     18,
		Blur:       15,
		MaxZoom:    18,
	}
}

func (s Settings) tileURL() string {
	if s.TileURL == "" {
		return DefaultTileURL
	}
	return s.TileURL
}
