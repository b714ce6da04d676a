// Command lauschr manages podcast feeds, episodes, collaborators and accounts
// stored in the local data directory, and renders feeds as RSS.
//
// Commands run as the local operator unless --as names a user ID, in which
// case every feed operation is checked against that user's role.
package main
