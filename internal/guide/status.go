package guide

import (
	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/fragment"
)

// Status is a point-in-time summary of the engine for the status command
// and the HTTP health surface.
type Status struct {
	Title     string          `json:"title"`
	SiteRoot  string          `json:"site_root"`
	PagePath  string          `json:"page_path"`
	SiteKind  config.SiteKind `json:"site_kind"`
	NodeCount int             `json:"node_count"`

	// Units is the size of the search index; Generation counts rebuilds.
	Units      int    `json:"units"`
	Generation uint64 `json:"generation"`

	// Reloads counts page reloads since Initialize.
	Reloads uint64 `json:"reloads"`

	Fragments FragmentStats `json:"fragments"`
}

// FragmentStats counts fragment records by state.
type FragmentStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Loading int `json:"loading"`
	Loaded  int `json:"loaded"`
	Failed  int `json:"failed"`
}

// Status reports the engine's current state. Zero values before
// Initialize.
func (e *Engine) Status() Status {
	e.mu.RLock()
	doc, loader, searcher := e.doc, e.loader, e.searcher
	reloads := e.reloads
	e.mu.RUnlock()

	st := Status{
		Title:    e.cfg.Site.Title,
		SiteRoot: e.siteRoot,
		PagePath: e.pagePath,
		SiteKind: config.DetectSiteKind(e.siteRoot),
		Reloads:  reloads,
	}
	if doc == nil {
		return st
	}

	st.NodeCount = doc.NodeCount()
	st.Units = len(searcher.Units())
	st.Generation = searcher.Generation()
	st.Fragments = countFragments(loader.Records())
	return st
}

// countFragments tallies records by state name.
func countFragments(records []fragment.Info) FragmentStats {
	stats := FragmentStats{Total: len(records)}
	for _, rec := range records {
		switch rec.State {
		case fragment.StatePending.String():
			stats.Pending++
		case fragment.StateLoading.String():
			stats.Loading++
		case fragment.StateLoaded.String():
			stats.Loaded++
		case fragment.StateFailed.String():
			stats.Failed++
		}
	}
	return stats
}
