// Package delivery packages a job's exported files and hands them to the job's
// destination.
//
// Finalize is the single entry point. It checks free space in the output
// directory, lays files out according to the job's packaging (zip, tar, folder,
// or individual), and then delivers them: left in place for downloads,
// uploaded to object storage or FTP, attached to an email, or posted to a
// platform API. Every failure is tagged with services.ErrFinalization so the
// workflow can keep it apart from per-campaign errors.
package delivery
