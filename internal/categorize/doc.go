// Package categorize defines the categorization result model shared by the
// service client, the response cache and the dispatcher, together with the
// offline rules used when the service is unavailable: the extension map,
// the final "Misc" fallback and the text-file detector that feeds deep
// inspection.
package categorize
