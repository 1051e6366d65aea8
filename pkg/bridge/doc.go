// Package bridge streams navigation state to remote views over a
// websocket.
//
// Each connection owns one navigator. The client sends intents as JSON
// text frames:
//
//	{"type":"navigate","to":"/events"}
//	{"type":"submit","action":"/events/new","method":"POST","form":{"title":["x"]}}
//	{"type":"fetch","key":"newsletter","href":"/newsletter"}
//	{"type":"fetch","key":"newsletter","submission":{"action":"/newsletter","method":"POST","form":{...}}}
//	{"type":"revalidate"}
//
// The server answers with snapshot and fetcher frames:
//
//	{"type":"snapshot","snapshot":{...}}
//	{"type":"fetcher","fetcher":{"key":"newsletter","state":"idle","data":{...}}}
//	{"type":"error","message":"..."}
package bridge
