package model

// OutputClip is one transcoded window. Immutable once produced.
type OutputClip struct {
	Window         HighlightWindow `json:"window"`
	Path           string          `json:"path"`
	Tier           Tier            `json:"tier"`
	Resolution     string          `json:"resolution"`
	Watermarked    bool            `json:"watermarked"`
	FilterChain    string          `json:"filter_chain"`
	ChainCorrected bool            `json:"chain_corrected"`
	SizeBytes      int64           `json:"size_bytes"`
}
