/*
Package socket implements the engine socket protocol.

A client opens a TCP connection, writes one JSON run request
{"run_id": ..., "experiment_id": ...} and reads one JSON response
{"status": <code>, "message": ...}. Status 200 means the engine accepted the
run; it does not wait for the run to finish. 400 rejects a malformed request
and 503 a request that arrived while every engine worker was busy.
*/
package socket
