// Package scoring turns explainability verdicts into a heuristic score and
// fuses it with the AI judge's score.
//
// The heuristic score starts at a neutral baseline and moves by a fixed
// delta per verdict. Unknown verdicts move nothing unless the domain is
// well known, in which case missing evidence is read charitably. Fusion is
// confidence-weighted: a high-confidence AI score replaces the heuristic
// score, medium blends 75/25 and low blends 50/50.
package scoring
