// Package rplayground provides a stateful R execution playground: isolated,
// long-lived R sessions that accept code over a request/response boundary and
// return captured output, the value of the last expression, and any plots
// drawn during the call.
//
// # Overview
//
// Each session owns exactly one R interpreter instance. Calls against the
// same session execute strictly in submission order; calls against different
// sessions run concurrently. Variable bindings and loaded packages persist
// across calls within a session and are never visible to other sessions.
//
// # Basic Usage
//
//	mgr := session.NewManager(host.Factory())
//	defer mgr.CloseAll()
//
//	id, _ := mgr.CreateSession()
//	mgr.Execute(ctx, id, `x <- 5`)
//	res, _ := mgr.Execute(ctx, id, `x + 1`)
//	fmt.Println(res.Value) // [1] 6
//
// # Plots
//
// Submitted code can call get_img_dest_file_name() to obtain a destination
// path for a graphics device. Every file written to such a path during a
// call comes back on the call's result as a decoded image, in the order the
// paths were issued.
//
// # Serving
//
// The cmd/rplayground binary exposes sessions as an MCP tool over stdio
// (`rplayground serve`), as a one-shot runner (`rplayground run`), and as an
// interactive REPL (`rplayground repl`).
//
// See the [interp], [session], [plot], [config], and [mcpserver] packages
// for detailed API documentation.
package rplayground
