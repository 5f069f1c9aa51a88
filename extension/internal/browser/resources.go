package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking intercepts requests and fails those of the listed
// resource types. Images and stylesheets are never blocked: they are what
// a screenshot shows.
func applyResourceBlocking(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := blockSetOf(types)
	if len(blockSet) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()

	return router
}

func blockSetOf(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		switch t = strings.ToLower(strings.TrimSpace(t)); t {
		case "", "images", "image", "stylesheets", "stylesheet":
		default:
			set[t] = true
		}
	}
	return set
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch lower := strings.ToLower(resType); lower {
	case "font":
		return blockSet["fonts"] || blockSet["font"]
	case "media":
		return blockSet["media"]
	case "websocket":
		return blockSet["websockets"] || blockSet["websocket"]
	default:
		return blockSet[lower]
	}
}
