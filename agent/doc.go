/*
Package agent holds the framework packages of the agency: the protocol state
machines and their persistence (psm, storage), the correlation registry, the
transition driver (prot), wire level models (didcomm, pltype), message
processing and outbound delivery (comm), state change notifications (bus) and
the boundary to the cryptographic collaborator (vc).
*/
package agent
