// Package sched contains the contracts of sched, the split-to-task scheduler for stages of a distributed
// query plan whose partitions are fixed to nodes before scheduling begins. This root package defines the
// types exchanged between a scheduler and its collaborators (stages, tasks, split sources and node selectors),
// and is an excellent overview of the key concepts: Lifespans, Splits, Futures and ScheduleResults.
//
// Stage schedulers are created through the scheduler package, and driven by polling Schedule until
// the returned ScheduleResult reports Finished. A blocked result carries a Future to wait on before polling again.
package sched
