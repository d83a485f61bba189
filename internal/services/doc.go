// Package services implements the outbound side of track resolution: a throttled request
// client, catalog adapters ([CatalogProvider]) and suggestion adapters ([Suggester]).
//
// # Request Client
//
// [Client] wraps one pooled [http.Transport] and one [rate.Limiter]. Every attempt, retries
// included, waits for a limiter slot. Transport, validation and decode failures all take the
// same fixed-delay retry path; exhaustion returns a [shared.RequestError]. [WithClient] scopes a
// client to one unit of work and always closes it.
//
// # Catalog Adapters
//
// [ITunesProvider] (default), [JamendoProvider] and [YouTubeMusicProvider] normalize
// provider records into [models.Track]. SearchBest never fails outright: a request error
// becomes a [models.StatusFailed] outcome for that query only. LookupByIDs sends ids in
// chunks (one per request for YouTube Music) and reassembles the results by id so the
// output matches the request order and length.
//
// Jamendo serves full-length audio, exposed as StreamURL and DownloadURL rather than
// PreviewURL. YouTube Music goes through the ytmusicapi proxy; the auth_file path is sent
// in the X-Auth-File header on each request.
//
// # Suggestion Adapters
//
// [GeminiSuggester] (default) and [OpenAISuggester] ask a text-generation model for a JSON
// list of titles and artists. [ExtractCandidates] scans the returned text for the first
// usable JSON list, strips markup and deduplicates the candidates.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrTransport] : connection or protocol failure
//   - [shared.ErrValidation] : response rejected by the acceptance predicate
//   - [shared.ErrDecode] : response body did not decode into the expected shape
//   - [shared.ErrTimeout] : response headers or body stalled
//   - [shared.ErrClientClosed] : call made after Close
//   - [shared.ErrMissingCredentials] : provider selected without its API key
package services
