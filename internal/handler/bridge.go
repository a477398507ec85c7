package handler

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

// bridgePage is served by the chain-tracking endpoint. It fires the
// tracking pixel, hands the visitor to the destination with a script
// redirect, and falls back to a meta refresh when scripting is disabled.
var bridgePage = htmltemplate.Must(htmltemplate.New("bridge").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex">
<noscript><meta http-equiv="refresh" content="0;url={{.FinalURL}}"></noscript>
<title>Redirecting…</title>
</head>
<body>
<img src="{{.PixelURL}}" width="1" height="1" alt="" style="position:absolute;left:-9999px">
<script>
(function () {
  window.location.replace({{.FinalURL}});
})();
</script>
</body>
</html>
`))

// bridgeData feeds the bridge page template.
type bridgeData struct {
	FinalURL string
	PixelURL string
}

// captureScript is the standalone capture bridge served at /capture.js.
// Landing pages embed it with data-affiliate/data-click attributes. It
// waits for client-side redirects and third-party scripts to settle, reads
// the visible URL, and reports it only when the designated parameter is
// present. It never blocks or alters the page.
// The template is plain text, so string values are pre-quoted by the
// handler before rendering.
var captureScript = texttemplate.Must(texttemplate.New("capture").Parse(
	`(function () {
  "use strict";
  var script = document.currentScript;
  if (!script) { return; }
  var affiliateId = script.getAttribute("data-affiliate") || "";
  var clickId = script.getAttribute("data-click") || "";
  if (!affiliateId || !clickId) { return; }

  // Settling delay: give affiliate-network scripts time to append their
  // parameters to the visible URL. A heuristic, not a readiness signal.
  setTimeout(function () {
    try {
      var href = window.location.href;
      var params = {};
      var query = window.location.search.replace(/^\?/, "");
      if (query) {
        query.split("&").forEach(function (pair) {
          var i = pair.indexOf("=");
          var key = i < 0 ? pair : pair.slice(0, i);
          var val = i < 0 ? "" : pair.slice(i + 1);
          key = decodeURIComponent(key);
          if (!(key in params)) {
            params[key] = decodeURIComponent(val.replace(/\+/g, " "));
          }
        });
      }
      if (!params[{{.ClickrefParam}}]) { return; }

      var payload = JSON.stringify({
        affiliateId: affiliateId,
        clickId: clickId,
        finalUrl: href,
        parameters: params,
        userAgent: navigator.userAgent,
        referrer: document.referrer
      });

      if (navigator.sendBeacon) {
        navigator.sendBeacon({{.CaptureURL}}, new Blob([payload], { type: "application/json" }));
      } else {
        var xhr = new XMLHttpRequest();
        xhr.open("POST", {{.CaptureURL}}, true);
        xhr.setRequestHeader("Content-Type", "application/json");
        xhr.send(payload);
      }
    } catch (e) {
      // Capture is a side channel; never surface errors to the page.
    }
  }, {{.SettlingDelayMs}});
})();
`))

// captureData feeds the capture script template. ClickrefParam and
// CaptureURL must already be quoted JS string literals.
type captureData struct {
	ClickrefParam   string
	CaptureURL      string
	SettlingDelayMs int64
}

// clickrefParam is the query parameter whose presence triggers a
// client-side capture report.
const clickrefParam = "clickref"

// transparentGIF is a 1×1 transparent GIF, served by the pixel endpoint.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3B,
}
