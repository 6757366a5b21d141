package api

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	ws "github.com/mailpilot/backend/internal/websocket"
)

// viewTemplate renders the triage output as a browsable table. Deleting a row
// calls the delete endpoint, then removes the row and decrements the counter
// without reloading.
var viewTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Email Triage</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f0f0f0; }
tr.high td.importance { color: #b00020; font-weight: bold; }
tr.orphan { color: #888; font-style: italic; }
button.delete { color: #b00020; }
</style>
</head>
<body>
<h1>Email Triage</h1>
<p><span id="num-emails">{{.NumEmails}}</span> emails analyzed. Last updated: {{.LastUpdated.Format "Mon, 02 Jan 2006 15:04:05 MST"}}</p>
<table>
<thead>
<tr><th>From</th><th>Subject</th><th>Importance</th><th>Needs response</th><th>Time-sensitive</th><th>Topics</th><th>Reason</th><th></th></tr>
</thead>
<tbody>
{{range .AnalyzedEmails}}
<tr id="email-{{.EmailID}}" class="{{.Importance}}{{if .Orphan}} orphan{{end}}">
<td>{{.From}}</td>
<td>{{.Subject}}</td>
<td class="importance">{{.Importance}}</td>
<td>{{if .NeedsResponse}}yes{{else}}no{{end}}</td>
<td>{{if .TimeSensitive}}yes{{else}}no{{end}}</td>
<td>{{range $i, $t := .Topics}}{{if $i}}, {{end}}{{$t}}{{end}}</td>
<td>{{.Reason}}</td>
<td>{{if not .Orphan}}<button class="delete" data-id="{{.EmailID}}">Delete</button>{{end}}</td>
</tr>
{{end}}
</tbody>
</table>
<script>
// The page itself is served behind bearer auth; forward the same credential
// on delete calls, via the query parameter when the page was opened with one.
var token = new URLSearchParams(window.location.search).get("token");
document.querySelectorAll("button.delete").forEach(function (button) {
	button.addEventListener("click", function () {
		var id = button.dataset.id;
		var url = "/delete/" + encodeURIComponent(id) + (token ? "?token=" + encodeURIComponent(token) : "");
		fetch(url, { method: "POST" })
			.then(function (resp) {
				if (!resp.ok) { throw new Error("delete failed: " + resp.status); }
				var row = document.getElementById("email-" + id);
				if (row) { row.remove(); }
				var counter = document.getElementById("num-emails");
				counter.textContent = Math.max(0, parseInt(counter.textContent, 10) - 1);
			})
			.catch(function (err) { alert(err.message); });
	});
});
</script>
</body>
</html>
`))

// AnalyzeEmailsView runs the triage pipeline and renders the HTML table view.
func (h *TriageHandler) AnalyzeEmailsView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	forceRefresh := r.URL.Query().Get("refresh") == "true"

	output, err := h.service.Triage(ctx, forceRefresh)
	if err != nil {
		h.writeTriageError(w, err)
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventTriageComplete, NumEmails: output.NumEmails})

	// Render to a buffer first to prevent partial writes.
	var buf bytes.Buffer
	if err := viewTemplate.Execute(&buf, output); err != nil {
		log.Printf("TriageHandler: Failed to render view: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("TriageHandler: Failed to write view: %v", err)
	}
}
