// Package rendersource reads rendered campaigns from the rendering service's
// output catalog.
//
// The catalog is a directory tree of <root>/<campaign-id>/campaign.json files
// describing each campaign and its render outputs. Output payloads live next
// to the descriptor (relative Path) or behind an HTTP URL. Only campaigns
// whose status is "completed" are eligible for export; the Source itself does
// not enforce that, callers do.
package rendersource
