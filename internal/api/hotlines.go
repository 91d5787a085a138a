package api

import "net/http"

func (d *Dependencies) handleListHotlines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HotlineListResp{
		Hotlines: d.Hotlines.LocalCachePayload(),
		Locales:  d.Hotlines.Locales(),
	})
}

// handleGetHotline always answers 200: unknown locales get the fallback record.
func (d *Dependencies) handleGetHotline(w http.ResponseWriter, r *http.Request) {
	locale := r.PathValue("locale")
	writeJSON(w, http.StatusOK, HotlineResp{
		Locale:        locale,
		HotlineRecord: d.Hotlines.Resolve(locale),
	})
}
