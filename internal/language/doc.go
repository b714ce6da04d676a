// Package language normalizes feed language codes to the lower-case BCP 47
// form podcast directories expect ("de", "en-us").
package language
