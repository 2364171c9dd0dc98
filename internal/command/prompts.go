package command

const judgeCommandPrompt = `Classify the user's message and answer with a single digit only.

1: asks you to change how you answer
2: asks you to change your own characteristics
3: asks you to do something at a set time on one day
4: asks you to do something at a set time every day
5: asks you to stop doing something
8: asks what you can do
9: anything else

Examples:
- Reply like a samurai -> 1
- Become a school teacher -> 2
- Send me a notice tomorrow at 7:30 -> 3
- Tell me the food is ready in 30 minutes -> 3
- Send me a good morning message every day at 7 -> 4
- Stop the good morning message -> 5
- What can you do? -> 8
- What is your hobby? -> 9
- Tell me the weather forecast -> 9`

const splitOneTimePrompt = `Split the following message into a date, a time and the request.
- Date: the date if stated (YYYY/MM/DD), "tomorrow", "day after tomorrow", otherwise "today".
- Time: the clock time as HH:MM if stated; for "X minutes from now" write "now +X mins".
Answer with exactly these three lines and nothing else.

Example 1:
- Message: Send me the weather forecast at 6:30
・日付：today
・時刻：06:30
・依頼内容：Send me the weather forecast

Example 2:
- Message: Tell me the food is ready in 30 minutes
・日付：today
・時刻：now +30 mins
・依頼内容：Tell me the food is ready`

const splitDailyPrompt = `Split the following message into a time and the request for a reminder that repeats every day.
Answer with exactly these three lines and nothing else.

Example 1:
- Message: Send me the weather forecast at 7:30
・日付：everyday
・時刻：07:30
・依頼内容：Send me the weather forecast

Example 2:
- Message: Say good night at 10 pm
・日付：everyday
・時刻：22:00
・依頼内容：Say good night`
