package cdpsurface

import (
	"encoding/json"
	"strconv"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// jsResolve declares matches(): the elements of the selector, evaluated
// inside the scope match when a scope is set. A missing scope yields none.
func jsResolve(sel surface.Selector) string {
	return `
var scope = ` + jsString(sel.Scope) + `;
var root = document;
if (scope) {
  root = document.querySelectorAll(scope)[` + strconv.Itoa(sel.ScopeIndex) + `] || null;
}
function matches() {
  if (!root) return [];
  return Array.prototype.slice.call(root.querySelectorAll(` + jsString(sel.CSS) + `));
}`
}

func jsQuery(sel surface.Selector) string {
	return wrapJSEval(jsResolve(sel) + `
var out = matches().map(function(el) {
  var t = el.innerText;
  if (typeof t !== "string") t = el.textContent || "";
  return t;
});
return JSON.stringify({ok:true,data:out});`)
}

// jsClick clicks match index up to repeat times, stopping once the element
// leaves the document.
func jsClick(el surface.Element, repeat int) string {
	return wrapJSEval(jsResolve(el.Selector) + `
var target = matches()[` + strconv.Itoa(el.Index) + `];
if (!target) {
  return JSON.stringify({ok:false,error_code:"` + CodeElementNotFound + `",error_message:"no element at ` + strconv.Itoa(el.Index) + `"});
}
var n = 0;
for (; n < ` + strconv.Itoa(repeat) + `; n++) {
  if (!target.isConnected) break;
  target.click();
}
return JSON.stringify({ok:true,data:{clicks:n}});`)
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// wrapJSEval wraps body in an IIFE that turns a thrown error into a failed
// envelope.
func wrapJSEval(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}
