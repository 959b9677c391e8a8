// Package output writes collected records to their destination: JSON lines
// (file or stdout), CSV rows, or a SQLite archive.
//
// A record reaches a Writer only after it was fully fetched and normalized,
// so an interrupted run leaves complete lines or rows behind:
//
//	w, err := output.New("json", "posts.jsonl", output.Options{})
//	defer w.Close()
//	for rec, err := range coll.Search(ctx, "news", collector.SearchOptions{}) {
//		...
//		w.Write(rec)
//	}
package output
