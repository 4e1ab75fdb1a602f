// Package resources persists attachment records.
//
// A resource row tracks three locations: the server id once uploaded
// (remote_id), the URI it is displayed from (uri) and the cached local file
// (local_uri). memo_id links the resource to its memo; NULL means the
// resource is not attached yet.
//
// Typical usage:
//
//	repo := resources.NewSQLRepository(db, dbx.DialectSQLite)
//	_ = repo.Upsert(ctx, res)
//	attached, _ := repo.GetByMemoID(ctx, memoID, accountKey)
package resources
