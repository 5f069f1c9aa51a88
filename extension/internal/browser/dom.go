package browser

import (
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/tobe/screenshot"
)

// Element handles of the last scan live in a page-global array so refs
// stay valid across evaluations.
const (
	geometryJS = `() => {
	const b = document.body, h = document.documentElement;
	return JSON.stringify({
		viewport_width: window.innerWidth,
		viewport_height: window.innerHeight,
		full_width: Math.max(b ? b.scrollWidth : 0, b ? b.offsetWidth : 0, h.clientWidth, h.scrollWidth, h.offsetWidth),
		full_height: Math.max(b ? b.scrollHeight : 0, b ? b.offsetHeight : 0, h.clientHeight, h.scrollHeight, h.offsetHeight),
		device_pixel_ratio: window.devicePixelRatio || 1,
	});
}`

	scrollPositionJS = `() => JSON.stringify([
	Math.round(window.scrollX || window.pageXOffset || 0),
	Math.round(window.scrollY || window.pageYOffset || 0),
])`

	scrollToJS = `(x, y) => { window.scrollTo(x, y); }`

	elementsJS = `(selectors) => {
	const refs = [], seen = new Set(), out = [];
	const snap = (el, matched) => {
		const cs = getComputedStyle(el);
		refs.push(el);
		out.push({
			ref: String(refs.length - 1),
			matched: matched,
			computed_position: cs.position,
			inline_position: el.style.position,
			classes: Array.from(el.classList),
			inline: {display: el.style.display, visibility: el.style.visibility, opacity: el.style.opacity},
		});
	};
	for (const sel of selectors) {
		let list;
		try { list = document.querySelectorAll(sel); } catch (e) { continue; }
		for (const el of list) {
			if (!seen.has(el)) { seen.add(el); snap(el, true); }
		}
	}
	for (const el of document.querySelectorAll('*')) {
		if (seen.has(el)) continue;
		const p = el.style.position;
		if (p === 'fixed' || p === 'sticky') { seen.add(el); snap(el, false); }
	}
	window.__tobeElements = refs;
	return JSON.stringify(out);
}`

	setStyleJS = `(ref, display, visibility, opacity) => {
	const el = (window.__tobeElements || [])[Number(ref)];
	if (!el || !el.isConnected) return false;
	el.style.display = display;
	el.style.visibility = visibility;
	el.style.opacity = opacity;
	return true;
}`
)

func decodeGeometry(s string) (screenshot.Geometry, error) {
	var g screenshot.Geometry
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return g, fmt.Errorf("browser: decode geometry: %w", err)
	}
	if g.DevicePixelRatio <= 0 {
		g.DevicePixelRatio = 1
	}
	return g, nil
}

func decodeScroll(s string) (int, int, error) {
	var xy [2]int
	if err := json.Unmarshal([]byte(s), &xy); err != nil {
		return 0, 0, fmt.Errorf("browser: decode scroll position: %w", err)
	}
	return xy[0], xy[1], nil
}

func decodeElements(s string) ([]screenshot.ElementStyle, error) {
	var out []screenshot.ElementStyle
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("browser: decode elements: %w", err)
	}
	return out, nil
}
