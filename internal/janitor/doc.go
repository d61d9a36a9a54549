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

// Package janitor orchestrates a full lifecycle pass over the fleet:
// inventory, policy evaluation, deletion of policy violators, expiry
// notifications, and analytics collection, in that order.
//
// The pass is resilient by stage. A failed inventory read aborts the run
// because nothing downstream can be trusted without it. Failures in the
// notification or analytics stages are logged and reported but do not stop
// the pass; a Redis outage must never prevent expired clusters from being
// deleted.
//
// Notification state is cleared only after a deletion is confirmed by
// re-reading the API server. A cluster whose CAPI object still exists keeps
// its dedup state so alerts are not repeated while the deletion drains.
package janitor
