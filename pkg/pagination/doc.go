// Package pagination implements the offset-paginated, deduplicating list
// protocol used by the recruiting list views.
//
// A list endpoint answers
//
//	GET <endpoint>?limit=12&offset=24[&<filter-key>=<value>]
//
// with {"results": [...], "next_offset": 36}. A null next_offset is the only
// end-of-list signal.
//
// The package is built from small parts:
//
//   - Cursor: the offset to request next, readable right after it is stored
//   - Fetcher: one page request at a time, stale responses discarded
//   - Partitioner: routes items into named buckets, skipping held identifiers
//   - Sentinel: arms on the last item and fires one fetch when it is visible
//   - CountPrefetcher: one large request for per-bucket totals
//
// Controller composes them for one list:
//
//	ctrl := pagination.NewController[recruit.JobPosting](source,
//		pagination.OwnershipConfig[recruit.JobPosting]("jobs"))
//	defer ctrl.Close()
//
//	if err := ctrl.Mount(ctx); err != nil {
//		// the snapshot carries a persistent error
//	}
//	_ = ctrl.SetIdentity(ctx, pagination.Identity{Email: "a@x.com", Name: "Alice"})
//
//	view := ctrl.Snapshot()
//	last := view.Items[len(view.Items)-1]
//	ctrl.Visible(last.ItemID()) // next page when the last item shows up
//
// Items are classified as "mine" only when both the owner email and the owner
// name match the current user.
package pagination
