// Package verify is the authoritative quality gate. Candidates that survived
// the snippet judgment are downloaded, their audio extracted and transcribed
// with word timestamps, and the word is re-judged against the real
// transcript. Media bytes never leave the local artifact directory; only
// clips whose final score clears the verification threshold move on to
// upload.
package verify
