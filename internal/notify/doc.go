/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package notify decides when expiry notifications fire and makes sure each
// severity fires at most once per cluster lifetime.
//
// The Tracker is a small state machine per cluster: NoneSent, WarningSent,
// BothSent. It reads elapsed-lifetime percentages off classification results,
// groups clusters by severity, and claims each (cluster, severity) pair in
// the store before handing the batch to a Notifier. The claim is atomic, so
// a scheduled job and a manual CLI run racing each other cannot both send
// the same alert. A critical claim also claims warning, because nobody wants
// a "heads up, 80% used" message after the "about to be deleted" one.
//
// Dedup state carries a rolling 30-day TTL. State that has not been
// refreshed in that long reads as never-sent, which errs toward a duplicate
// alert rather than a silently lost one. On confirmed cluster deletion the
// state is cleared immediately instead of waiting out the TTL.
package notify
