// Package flagged aggregates analyses that look risky.
//
// A result is flag-worthy when its score is below the caution threshold,
// its status is high risk, or the AI judge returned an adverse verdict.
// Flag-worthy results are reduced to a FlaggedSiteRecord and upserted by
// hostname: the first sighting inserts, later sightings replace the
// snapshot, bump the observation count and keep the first-seen time.
package flagged
