// Package upwork searches freelancers and posts jobs on the Upwork
// marketplace.
package upwork
