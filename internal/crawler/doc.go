// Package crawler implements the deep-analysis crawl of a site's trust pages.
//
// A trust page is a same-host page whose path mentions something a
// legitimate business usually publishes: about, contact, privacy, terms,
// refund or shipping policies, support and FAQ pages, legal notices and
// reviews. The Spider extracts candidate links from the already fetched
// homepage, ranks them by keyword, and fetches a bounded number of them
// concurrently through the same Fetcher used for the homepage.
//
// # Usage
//
//	spider := crawler.NewSpider(f, crawler.WithMaxPages(6))
//	res, err := spider.Crawl(ctx, finalURL, homepageHTML)
//
// The crawl never fails the analysis: pages that cannot be fetched are
// recorded with OK=false and counted in Requested but not in Fetched.
package crawler
