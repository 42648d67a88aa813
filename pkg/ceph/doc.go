/*
Package ceph talks to a Ceph cluster through the ceph command line tool.

CLI implements the cluster adapter used by the drain controller and the
scratch pool lifecycle:

	Topology          ceph osd tree --format json
	SetWeight         ceph osd crush reweight osd.N W
	ActiveBackfills   ceph status --format json   (pgs_by_state containing "backfilling")
	PoolExists        ceph osd pool ls --format json
	CreatePool        ceph osd pool create NAME PG PG
	DeletePool        ceph osd pool delete NAME NAME --yes-i-really-really-mean-it

Commands go through a Runner so tests can replace the process with canned
output. ExecRunner bounds every invocation with a timeout and keeps stderr in
a CommandError; failures are marked types.ErrTransient.
*/
package ceph
