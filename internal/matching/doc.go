// Package matching turns noisy venue listing strings into comparison keys and decides whether
// a listing and a catalog artist are the same act.
//
// # Normalization
//
// [Normalize] produces the key used for every comparison and for the artist cache. It is never
// shown to users.
//
// # Splitting
//
// [Split] breaks a compound listing ("A w/ B") on the first separator in [Separators] that yields
// two or more parts. [CleanSingle] tidies each fragment before it is looked up on its own.
// Splitting only happens after the whole listing failed to match, so names like
// "Earth, Wind & Fire" get a chance to match as written first.
//
// # Tiers
//
// [BestMatch] accepts a candidate at the first tier that matches, trying every candidate at a
// tier before moving to a looser one:
//
//  1. [TierExact] : equal keys
//  2. [TierArticle] : equal after dropping a leading "the"
//  3. [TierContainment] : one key contains the other, lengths within 4, shorter at least 3
//
// Anything looser is a miss.
package matching
