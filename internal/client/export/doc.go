// Package export writes doctor reports to a local directory or an S3
// compatible bucket.
package export
