package web

import "html/template"

// indexTmpl is the single chat page. Everything dynamic happens client-side
// against the JSON/SSE endpoints.
var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2em auto; }
#messages { border: 1px solid #ccc; padding: 1em; min-height: 320px; }
.user { color: #1a5fb4; margin: .5em 0; }
.system { color: #26a269; margin: .5em 0; white-space: pre-wrap; }
form { display: flex; gap: .5em; margin-top: 1em; }
input[type=text] { flex: 1; padding: .5em; }
</style>
</head>
<body>
<h1>🤖 {{.Title}}</h1>
<div id="messages"></div>
<form id="ask">
<input type="text" id="prompt" placeholder="Ask a question..." autofocus>
<button type="submit">Send</button>
<button type="button" id="reset">Reset</button>
</form>
<script>
const messages = document.getElementById("messages");
function add(cls, text) {
  const div = document.createElement("div");
  div.className = cls;
  div.textContent = text;
  messages.appendChild(div);
  return div;
}
document.getElementById("ask").addEventListener("submit", (e) => {
  e.preventDefault();
  const prompt = document.getElementById("prompt").value.trim();
  if (!prompt) return;
  document.getElementById("prompt").value = "";
  add("user", prompt);
  const answer = add("system", "");
  const src = new EventSource("/ask/stream?prompt=" + encodeURIComponent(prompt));
  src.onmessage = (ev) => { answer.textContent += JSON.parse(ev.data).message; };
  src.addEventListener("done", () => src.close());
  src.onerror = () => src.close();
});
document.getElementById("reset").addEventListener("click", async () => {
  if (!confirm("Reset the conversation?")) return;
  await fetch("/conversation/reset", {method: "POST"});
  messages.innerHTML = "";
});
</script>
</body>
</html>
`))
